package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want *ClientMessage
	}{
		{
			name: "found",
			data: `{"type":"found"}`,
			want: &ClientMessage{Type: TypeFound},
		},
		{
			name: "stage_reached",
			data: `{"type":"stage_reached","stage":15}`,
			want: &ClientMessage{Type: TypeStageReached, Stage: 15},
		},
		{
			name: "use_item",
			data: `{"type":"use_item","itemId":"abc"}`,
			want: &ClientMessage{Type: TypeUseItem, ItemID: "abc"},
		},
		{
			name: "not json",
			data: `{{{`,
			want: nil,
		},
		{
			name: "missing type",
			data: `{"stage":5}`,
			want: nil,
		},
		{
			name: "json but not an object",
			data: `"rematch"`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode([]byte(tt.data))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemAppliedOptionalFields(t *testing.T) {
	data, err := json.Marshal(ItemApplied{
		Type:     TypeItemApplied,
		By:       "p1",
		TypeName: "shield",
		TargetID: "p1",
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "effectUntil", "absent expiry must stay absent on the wire")
	assert.NotContains(t, raw, "blocked")
}

func TestMatchStartShape(t *testing.T) {
	msg := NewMatchStart("r1", "p1", map[string]int{"p1": 0, "p2": 0}, 1234)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "match_start", raw["type"])
	assert.Equal(t, "r1", raw["roomId"])
	assert.Equal(t, "p1", raw["playerId"])
	assert.Equal(t, float64(1234), raw["endAt"])
}

// network/connection.go
package network

import (
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Connection is the transport handle the rest of the server talks to.
// Send must never block: messages to a slow or dead peer are dropped
// silently, and per-connection delivery order is preserved for whatever
// does get delivered.
type Connection interface {
	Send(v any) error
	ReadMessage() ([]byte, error)
	Alive() bool
	Close() error
	RemoteAddr() net.Addr
}

// outboundBuffer sizes the per-connection send queue. A two-player match
// produces a handful of frames per second, so this never fills in practice.
const outboundBuffer = 64

// WSConnection carries UTF-8 text frames, each one JSON message. Writes
// go through a single writer goroutine so callers can send while holding
// locks without an I/O wait.
type WSConnection struct {
	conn      *websocket.Conn
	out       chan []byte
	quit      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	c := &WSConnection{
		conn: conn,
		out:  make(chan []byte, outboundBuffer),
		quit: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *WSConnection) writePump() {
	for {
		select {
		case data := <-c.out:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.markDead()
				return
			}
		case <-c.quit:
			return
		}
	}
}

// Send marshals v and enqueues it. A dead connection or a full queue is a
// silent drop.
func (c *WSConnection) Send(v any) error {
	if c.closed.Load() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.out <- data:
	default:
	}
	return nil
}

func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.markDead()
		return nil, err
	}
	return data, nil
}

func (c *WSConnection) Alive() bool {
	return !c.closed.Load()
}

func (c *WSConnection) markDead() {
	c.closed.Store(true)
}

func (c *WSConnection) Close() error {
	c.markDead()
	c.closeOnce.Do(func() { close(c.quit) })
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

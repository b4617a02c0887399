package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// send marshals and sends one JSON text frame.
func send(c *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", string(message))
		}
	}()

	log.Println("Client started. Commands: found | stage <n> | use <itemId> | rematch")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}

			var msg map[string]any
			switch fields[0] {
			case "found":
				msg = map[string]any{"type": "found"}
			case "stage":
				if len(fields) < 2 {
					log.Println("Usage: stage <n>")
					continue
				}
				n, err := strconv.Atoi(fields[1])
				if err != nil {
					log.Println("Bad stage number:", fields[1])
					continue
				}
				msg = map[string]any{"type": "stage_reached", "stage": n}
			case "use":
				if len(fields) < 2 {
					log.Println("Usage: use <itemId>")
					continue
				}
				msg = map[string]any{"type": "use_item", "itemId": fields[1]}
			case "rematch":
				msg = map[string]any{"type": "rematch"}
			default:
				log.Println("Unknown command:", fields[0])
				continue
			}

			if err := send(c, msg); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}

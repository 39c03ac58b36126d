// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// One Monday order next to Appleton Tower.
const demoOrders = `[{"id": 1, "date": "2025-01-06", "time": "10:00",
	"requirements": {"capacity": 1}, "delivery": {"lng": -3.186874, "lat": 55.946}}]`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/plans/stream"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]any{"eventType": "plan.completed"})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger a plan event
	time.Sleep(500 * time.Millisecond)
	resp, err := http.Post(base+"/api/v1/calcDeliveryPath", "application/json", bytes.NewReader([]byte(demoOrders)))
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("calcDeliveryPath: %s plan %s", resp.Status, resp.Header.Get("X-Plan-Id"))

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Plan events over WebSocket with a graphql-transport-ws like envelope:
// connection_init/connection_ack, subscribe/next/complete, ping/pong.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// subscribePayload optionally narrows a subscription to one event type.
type subscribePayload struct {
	EventType string `json:"eventType"`
}

// PlanStreamHandler handles GET /v1/plans/stream
func (s *Server) PlanStreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	subs := map[string]chan Event{}
	done := make(chan struct{})
	defer close(done)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	// gorilla connections allow one concurrent writer.
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if msg.ID == "" {
				_ = write(wsMessage{Type: "error", Payload: []byte(`{"message":"id required"}`)})
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"duplicate id"}`)})
				continue
			}
			var pl subscribePayload
			if len(msg.Payload) > 0 {
				_ = json.Unmarshal(msg.Payload, &pl)
			}
			ch := s.Broker.Subscribe(TopicPlans)
			subs[msg.ID] = ch
			go func(id string, c chan Event, only string) {
				for evt := range c {
					if only != "" && evt.Type != only {
						continue
					}
					payload, _ := json.Marshal(evt)
					_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, pl.EventType)
		case "complete":
			if ch, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(TopicPlans, ch)
				delete(subs, msg.ID)
			}
		}
	}
	for id, ch := range subs {
		s.Broker.Unsubscribe(TopicPlans, ch)
		delete(subs, id)
	}
}

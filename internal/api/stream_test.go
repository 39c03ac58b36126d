package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanStream(t *testing.T) {
	s, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/plans/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "connection_init"}))
	var ack wsMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "connection_ack", ack.Type)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: json.RawMessage(`{"eventType":"plan.completed"}`)}))
	// ping round trip guarantees the subscribe message was handled.
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "ping"}))
	var pong wsMessage
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong.Type)

	s.Broker.Publish(TopicPlans, Event{Type: "plan.other", Data: map[string]any{"skip": true}})
	s.Broker.Publish(TopicPlans, Event{Type: "plan.completed", Data: map[string]any{"planId": "p1"}})

	var next wsMessage
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "next", next.Type)
	assert.Equal(t, "1", next.ID)
	var evt Event
	require.NoError(t, json.Unmarshal(next.Payload, &evt))
	assert.Equal(t, "p1", evt.Data["planId"])

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "complete", ID: "1"}))
	var done wsMessage
	require.NoError(t, conn.ReadJSON(&done))
	assert.Equal(t, "complete", done.Type)
}

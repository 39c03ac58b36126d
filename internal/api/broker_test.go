package api

import (
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicPlans)

	evt := Event{Type: "plan.completed", Data: map[string]any{"x": 1}}
	b.Publish(TopicPlans, evt)
	b.Publish("other", Event{Type: "ignored"})

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["x"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(TopicPlans, ch)
	b.Unsubscribe(TopicPlans, ch) // second call is a no-op
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	b.Publish(TopicPlans, evt)
}

func TestRedisBroker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping redis broker test")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b := NewRedisBroker(redis.NewClient(opt), nil)
	ch := b.Subscribe(TopicPlans)
	b.Publish(TopicPlans, Event{Type: "plan.completed", Data: map[string]any{"planId": "p"}})
	select {
	case got := <-ch:
		if got.Data["planId"] != "p" {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}
	b.Unsubscribe(TopicPlans, ch)
}

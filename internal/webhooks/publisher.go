package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dronenav/internal/store"
)

// EventPlanCompleted is emitted after a plan has been stored.
const EventPlanCompleted = "plan.completed"

// Publisher fans events out to the configured webhook URLs through the store's
// delivery queue.
type Publisher struct {
	Store  store.Store
	URLs   []string
	Secret string
	Log    *slog.Logger
}

func NewPublisher(s store.Store, urls []string, secret string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{Store: s, URLs: urls, Secret: secret, Log: log}
}

// Emit enqueues one delivery per URL and returns the event id. Nothing is
// enqueued when no URLs are configured.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) string {
	if p == nil || len(p.URLs) == 0 {
		return ""
	}
	id := "evt_" + uuid.New().String()
	payload := map[string]any{
		"id":   id,
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.Log.Error("webhook payload", "event", eventType, "err", err)
		return ""
	}
	for _, u := range p.URLs {
		if _, err := p.Store.EnqueueWebhook(ctx, eventType, u, p.Secret, body); err != nil {
			p.Log.Warn("enqueue webhook", "event", eventType, "url", u, "err", err)
		}
	}
	return id
}

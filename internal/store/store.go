package store

import (
	"context"
	"errors"
	"time"

	"dronenav/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Plans
	SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error)
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	ListPlans(ctx context.Context, cursor string, limit int) ([]model.Plan, string, error)

	// Metrics
	SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error
	ListPlanMetrics(ctx context.Context, planID, planDate string) ([]model.PlanMetrics, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error)
	RetryWebhookDelivery(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// pageLimit clamps a requested page size.
func pageLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

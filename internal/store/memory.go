package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dronenav/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	plans     map[string]model.Plan
	planOrder []string                       // plan ids in insertion order
	planMx    map[string][]model.PlanMetrics // planId -> metrics

	// Webhooks queue state
	deliveries    map[string]*WebhookDelivery
	deliveryOrder []string
	dlq           []WebhookDelivery
	dedup         map[string]string // eventType|url|dedupKey -> delivery id
}

func NewMemory() *Memory {
	return &Memory{
		plans:      map[string]model.Plan{},
		planMx:     map[string][]model.PlanMetrics{},
		deliveries: map[string]*WebhookDelivery{},
		dedup:      map[string]string{},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// SavePlan stores plan, assigning an id and creation time when missing.
func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.plans[plan.ID]; !exists {
		m.planOrder = append(m.planOrder, plan.ID)
	}
	m.plans[plan.ID] = plan
	return plan, nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

// ListPlans pages through plans oldest first. The cursor is the id of the
// last plan of the previous page.
func (m *Memory) ListPlans(ctx context.Context, cursor string, limit int) ([]model.Plan, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = pageLimit(limit)
	start := 0
	if cursor != "" {
		start = slices.Index(m.planOrder, cursor) + 1
	}
	out := []model.Plan{}
	for _, id := range m.planOrder[start:] {
		out = append(out, m.plans[id])
		if len(out) == limit {
			break
		}
	}
	next := ""
	if len(out) == limit && start+limit < len(m.planOrder) {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// SavePlanMetrics upserts by (planId, date).
func (m *Memory) SavePlanMetrics(ctx context.Context, pm model.PlanMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = time.Now().UTC()
	}
	items := m.planMx[pm.PlanID]
	for i := range items {
		if items[i].Date == pm.Date {
			items[i] = pm
			return nil
		}
	}
	m.planMx[pm.PlanID] = append(items, pm)
	return nil
}

// ListPlanMetrics filters by plan id and date; empty filters match everything.
func (m *Memory) ListPlanMetrics(ctx context.Context, planID, planDate string) ([]model.PlanMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PlanMetrics{}
	for _, id := range m.planOrder {
		if planID != "" && id != planID {
			continue
		}
		for _, it := range m.planMx[id] {
			if planDate == "" || it.Date == planDate {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dk := eventType + "|" + url + "|" + computeDedupKey(payload)
	if id, ok := m.dedup[dk]; ok {
		return id, nil
	}
	id := uuid.New().String()
	now := time.Now()
	m.deliveries[id] = &WebhookDelivery{ID: id, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: StatusPending, NextAttemptAt: &now}
	m.deliveryOrder = append(m.deliveryOrder, id)
	m.dedup[dk] = id
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryOrder {
		d := m.deliveries[id]
		if (d.Status == StatusPending || d.Status == StatusRetry) && (d.NextAttemptAt == nil || !d.NextAttemptAt.After(now)) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = StatusDelivered
		d.NextAttemptAt = nil
		return nil
	}
	d.Status = StatusRetry
	d.LastError = lastError
	if nextAttemptAt == nil {
		t := time.Now().Add(1 * time.Minute)
		nextAttemptAt = &t
	}
	d.NextAttemptAt = nextAttemptAt
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = StatusFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	d.NextAttemptAt = nil
	m.dlq = append(m.dlq, *d)
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = pageLimit(limit)
	start := 0
	if cursor != "" {
		start = slices.Index(m.deliveryOrder, cursor) + 1
	}
	out := []WebhookDelivery{}
	next := ""
	for _, id := range m.deliveryOrder[start:] {
		d := m.deliveries[id]
		if status != "" && d.Status != status {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1].ID
			break
		}
		out = append(out, *d)
	}
	return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	now := time.Now()
	d.Status = StatusPending
	d.NextAttemptAt = &now
	return nil
}

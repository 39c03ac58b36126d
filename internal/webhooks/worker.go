package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dronenav/internal/metrics"
	"dronenav/internal/store"
)

const DefaultMaxAttempts = 10

type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	Interval    time.Duration
	Log         *slog.Logger
}

func NewWorker(s store.Store, maxAttempts int, log *slog.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Stop:        make(chan struct{}),
		MaxAttempts: maxAttempts,
		Interval:    time.Second,
		Log:         log,
	}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil {
		w.Log.Warn("fetch webhook deliveries", "err", err)
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	success := false
	next := time.Now().Add(nextBackoff(it.Attempts))
	code, latency, err := w.post(ctx, it)
	if err == nil && code >= 200 && code < 300 {
		success = true
	}
	lastErr := ""
	switch {
	case err != nil:
		lastErr = err.Error()
	case !success:
		lastErr = fmt.Sprintf("status %d", code)
	}

	outcome := store.StatusDelivered
	if !success {
		outcome = store.StatusRetry
		if it.Attempts+1 >= w.MaxAttempts {
			outcome = store.StatusFailed
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, outcome).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, outcome).Observe(float64(latency))

	if outcome == store.StatusFailed {
		w.Log.Warn("webhook delivery failed permanently", "id", it.ID, "url", it.URL, "attempts", it.Attempts+1, "err", lastErr)
		if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
			w.Log.Error("fail webhook delivery", "id", it.ID, "err", err)
		}
		return
	}
	if err := w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency); err != nil {
		w.Log.Error("mark webhook delivery", "id", it.ID, "err", err)
	}
}

func (w *Worker) post(ctx context.Context, it store.WebhookDelivery) (code, latencyMs int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	if it.Secret != "" {
		req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latencyMs = int(time.Since(start).Milliseconds())
	if err != nil {
		return 0, latencyMs, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, latencyMs, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}

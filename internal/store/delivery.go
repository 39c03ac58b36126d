package store

import "time"

// Delivery states.
const (
	StatusPending   = "pending"
	StatusRetry     = "retry"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

type WebhookDelivery struct {
	ID            string     `json:"id"`
	EventType     string     `json:"eventType"`
	URL           string     `json:"url"`
	Secret        string     `json:"-"`
	Payload       []byte     `json:"-"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	ResponseCode  int        `json:"responseCode,omitempty"`
	LatencyMs     int        `json:"latencyMs,omitempty"`
}

package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dronenav/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// MigrateDir applies every *.sql file in dir in lexical order. Migrations
// must be idempotent.
func (p *Postgres) MigrateDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	slices.Sort(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

// Plans

func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	orders, err := json.Marshal(nonNil(plan.Orders))
	if err != nil {
		return model.Plan{}, err
	}
	delivered, err := json.Marshal(nonNil(plan.Delivered))
	if err != nil {
		return model.Plan{}, err
	}
	resp, err := json.Marshal(plan.Response)
	if err != nil {
		return model.Plan{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO plans (id, created_at, orders, delivered, response, total_cost, total_moves)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET orders=EXCLUDED.orders, delivered=EXCLUDED.delivered, response=EXCLUDED.response,
			total_cost=EXCLUDED.total_cost, total_moves=EXCLUDED.total_moves`,
		plan.ID, plan.CreatedAt, orders, delivered, resp, plan.Response.TotalCost, plan.Response.TotalMoves)
	if err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

const planColumns = `id::text, created_at, orders, delivered, response`

func scanPlan(row interface{ Scan(...any) error }) (model.Plan, error) {
	var pl model.Plan
	var orders, delivered, resp []byte
	if err := row.Scan(&pl.ID, &pl.CreatedAt, &orders, &delivered, &resp); err != nil {
		return model.Plan{}, err
	}
	if err := json.Unmarshal(orders, &pl.Orders); err != nil {
		return model.Plan{}, err
	}
	if err := json.Unmarshal(delivered, &pl.Delivered); err != nil {
		return model.Plan{}, err
	}
	if err := json.Unmarshal(resp, &pl.Response); err != nil {
		return model.Plan{}, err
	}
	return pl, nil
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Plan{}, ErrNotFound
	}
	pl, err := scanPlan(p.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	return pl, err
}

// ListPlans pages oldest first on (created_at, id); cursor is the last id seen.
func (p *Postgres) ListPlans(ctx context.Context, cursor string, limit int) ([]model.Plan, string, error) {
	limit = pageLimit(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans
			WHERE (created_at, id) > (SELECT created_at, id FROM plans WHERE id=$1)
			ORDER BY created_at, id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY created_at, id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Plan{}
	for rows.Next() {
		pl, err := scanPlan(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// Metrics

func (p *Postgres) SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO plan_metrics (plan_id, plan_date, flights, delivered, dropped, evicted, path_searches, total_moves, total_cost, duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (plan_id, plan_date) DO UPDATE SET flights=EXCLUDED.flights, delivered=EXCLUDED.delivered, dropped=EXCLUDED.dropped,
			evicted=EXCLUDED.evicted, path_searches=EXCLUDED.path_searches, total_moves=EXCLUDED.total_moves,
			total_cost=EXCLUDED.total_cost, duration_ms=EXCLUDED.duration_ms, created_at=now()`,
		m.PlanID, m.Date, m.Flights, m.Delivered, m.Dropped, m.Evicted, m.PathSearches, m.TotalMoves, m.TotalCost, m.DurationMs)
	return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, planID, planDate string) ([]model.PlanMetrics, error) {
	q := `SELECT plan_id::text, plan_date, flights, delivered, dropped, evicted, path_searches, total_moves, total_cost, duration_ms, created_at
		FROM plan_metrics WHERE 1=1`
	args := []any{}
	if planID != "" {
		args = append(args, planID)
		q += fmt.Sprintf(" AND plan_id=$%d", len(args))
	}
	if planDate != "" {
		args = append(args, planDate)
		q += fmt.Sprintf(" AND plan_date=$%d", len(args))
	}
	q += " ORDER BY created_at, plan_date"
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PlanMetrics{}
	for rows.Next() {
		var m model.PlanMetrics
		if err := rows.Scan(&m.PlanID, &m.Date, &m.Flights, &m.Delivered, &m.Dropped, &m.Evicted, &m.PathSearches,
			&m.TotalMoves, &m.TotalCost, &m.DurationMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,'pending',0,now(),$6)
		ON CONFLICT (event_type, url, dedup_key) DO NOTHING`, id, eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	// On a duplicate the existing delivery wins.
	err = p.db.QueryRowContext(ctx, `SELECT id::text FROM webhook_deliveries WHERE event_type=$1 AND url=$2 AND dedup_key=$3`,
		eventType, url, dk).Scan(&id)
	return id, err
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2,
			updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`, nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(),
		response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(),
		response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	if err != nil {
		return err
	}
	// move to DLQ
	_, err = tx.ExecContext(ctx, `INSERT INTO webhook_dlq (id, delivery_id, event_type, url, secret, payload, attempts, last_error)
		SELECT gen_random_uuid(), id, event_type, url, secret, payload, attempts, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
	limit = pageLimit(limit)
	q := `SELECT id::text, event_type, url, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0)
		FROM webhook_deliveries WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(" AND id > $%d::uuid", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var nextAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &nextAt, &d.LastError, &d.ResponseCode, &d.LatencyMs); err != nil {
			return nil, "", err
		}
		if nextAt.Valid {
			d.NextAttemptAt = &nextAt.Time
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// computeDedupKey uses the payload's "id" when present, else a short hash.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

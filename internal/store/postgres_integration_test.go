//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"dronenav/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Ping(t.Context()))
	require.NoError(t, p.MigrateDir("../../db/migrations"))

	pl, err := p.SavePlan(t.Context(), model.Plan{Orders: []int{1, 2}, Delivered: []int{1}})
	require.NoError(t, err)
	got, err := p.GetPlan(t.Context(), pl.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1}, got.Delivered)

	require.NoError(t, p.SavePlanMetrics(t.Context(), model.PlanMetrics{PlanID: pl.ID, Date: "2025-01-01", Flights: 1}))
	require.NoError(t, p.SavePlanMetrics(t.Context(), model.PlanMetrics{PlanID: pl.ID, Date: "2025-01-01", Flights: 2}))
	mx, err := p.ListPlanMetrics(t.Context(), pl.ID, "")
	require.NoError(t, err)
	require.Len(t, mx, 1)
	require.Equal(t, 2, mx[0].Flights)

	id1, err := p.EnqueueWebhook(t.Context(), "plan.completed", "http://example.invalid", "", []byte(`{"id":"`+pl.ID+`"}`))
	require.NoError(t, err)
	id2, err := p.EnqueueWebhook(t.Context(), "plan.completed", "http://example.invalid", "", []byte(`{"id":"`+pl.ID+`"}`))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.NoError(t, p.FailWebhookDelivery(t.Context(), id1, "boom", 500, 3))
}

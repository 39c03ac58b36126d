package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dronenav/internal/geo"
	"dronenav/internal/geojson"
	"dronenav/internal/metrics"
	"dronenav/internal/model"
	"dronenav/internal/planner"
	"dronenav/internal/store"
	"dronenav/internal/webhooks"
)

// plan runs the planner over one fleet snapshot, then stores the result and
// announces it. Storage and notification failures are logged only.
func (s *Server) plan(ctx context.Context, orders []model.Order) (model.Plan, error) {
	var f planner.Fleet = s.Fleet
	if frozen, err := s.Fleet.Freeze(ctx); err != nil {
		s.Log.Warn("fleet snapshot failed, planning against live source", "err", err)
	} else {
		f = frozen
	}

	res, err := s.plannerFor(f).Run(ctx, orders)
	if err != nil {
		metrics.Plans.WithLabelValues("error").Inc()
		return model.Plan{}, err
	}
	metrics.Plans.WithLabelValues("ok").Inc()
	metrics.ObservePathCache(res.CacheHits, res.CacheMisses)

	ids := make([]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	p, err := s.Store.SavePlan(ctx, model.Plan{Orders: ids, Delivered: res.Delivered, Response: res.Response})
	if err != nil {
		s.Log.Error("save plan", "err", err)
		return model.Plan{Orders: ids, Delivered: res.Delivered, Response: res.Response}, nil
	}
	for _, g := range res.Groups {
		pm := model.PlanMetrics{
			PlanID:       p.ID,
			Date:         g.Date,
			Flights:      g.Flights,
			Delivered:    g.Delivered,
			Dropped:      g.Dropped,
			Evicted:      g.Evicted,
			PathSearches: g.PathSearches,
			TotalMoves:   g.Moves,
			TotalCost:    g.Cost,
			DurationMs:   g.Duration.Milliseconds(),
		}
		if err := s.Store.SavePlanMetrics(ctx, pm); err != nil {
			s.Log.Warn("save plan metrics", "plan", p.ID, "date", g.Date, "err", err)
		}
	}

	summary := map[string]any{
		"planId":     p.ID,
		"orders":     len(orders),
		"delivered":  len(res.Delivered),
		"flights":    len(res.Response.DronePaths),
		"totalMoves": res.Response.TotalMoves,
		"totalCost":  res.Response.TotalCost,
	}
	s.Broker.Publish(TopicPlans, Event{Type: webhooks.EventPlanCompleted, Data: summary})
	s.Pub.Emit(ctx, webhooks.EventPlanCompleted, summary)
	s.Log.Info("plan completed", "plan", p.ID, "orders", len(orders), "delivered", len(res.Delivered),
		"flights", len(res.Response.DronePaths), "moves", res.Response.TotalMoves)
	return p, nil
}

func (s *Server) planFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, geo.ErrOpenPolygon), errors.Is(err, geo.ErrTooFewVertices),
		errors.Is(err, model.ErrDuplicateOrderID):
		s.badRequest(w, r, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusServiceUnavailable, "Planning cancelled", err.Error(), r.URL.Path)
	default:
		s.Log.Error("planning failed", "err", err)
		writeProblem(w, http.StatusInternalServerError, "Planning failed", err.Error(), r.URL.Path)
	}
}

// DeliveryPathHandler handles POST /api/v1/calcDeliveryPath
func (s *Server) DeliveryPathHandler(w http.ResponseWriter, r *http.Request) {
	orders, ok := s.readOrders(w, r)
	if !ok {
		return
	}
	p, err := s.plan(r.Context(), orders)
	if err != nil {
		s.planFailed(w, r, err)
		return
	}
	if p.ID != "" {
		w.Header().Set("X-Plan-Id", p.ID)
	}
	writeJSON(w, http.StatusOK, p.Response)
}

// DeliveryPathGeoJSONHandler handles POST /api/v1/calcDeliveryPathAsGeoJson
func (s *Server) DeliveryPathGeoJSONHandler(w http.ResponseWriter, r *http.Request) {
	orders, ok := s.readOrders(w, r)
	if !ok {
		return
	}
	p, err := s.plan(r.Context(), orders)
	if err != nil {
		s.planFailed(w, r, err)
		return
	}
	fc := geojson.FromFlightResponse(p.Response)
	if r.URL.Query().Get("areas") == "true" {
		if areas, err := s.Fleet.RestrictedAreas(r.Context()); err == nil {
			fc = geojson.Merge(fc, geojson.FromAreas(areas))
		}
	}
	if p.ID != "" {
		w.Header().Set("X-Plan-Id", p.ID)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "GeoJSON encoding failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// PlansHandler handles GET /v1/plans
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	items, next, err := s.Store.ListPlans(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles GET /v1/plans/{id}; ?format=geojson renders the flights.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetPlan(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "plan not found", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
		return
	}
	if r.URL.Query().Get("format") == "geojson" {
		writeJSON(w, http.StatusOK, geojson.FromFlightResponse(p.Response))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?planId=&date=
// With neither filter it also reports the latest in-process run per date.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	planID := r.URL.Query().Get("planId")
	date := r.URL.Query().Get("date")
	items, err := s.Store.ListPlanMetrics(r.Context(), planID, date)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plan metrics failed", err.Error(), r.URL.Path)
		return
	}
	out := map[string]any{"items": items}
	if planID == "" {
		latest := []map[string]any{}
		for _, g := range s.Runs.All() {
			if date != "" && g.Date != date {
				continue
			}
			latest = append(latest, map[string]any{
				"date": g.Date, "orders": g.Orders, "flights": g.Flights, "delivered": g.Delivered,
				"dropped": g.Dropped, "evicted": g.Evicted, "pathSearches": g.PathSearches,
				"totalMoves": g.Moves, "totalCost": g.Cost, "durationMs": g.Duration.Milliseconds(),
			})
		}
		out["latest"] = latest
	}
	writeJSON(w, http.StatusOK, out)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	q := r.URL.Query()
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), q.Get("status"), q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	err := s.Store.RetryWebhookDelivery(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "delivery not found", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Retry failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": r.PathValue("id"), "status": store.StatusPending, "at": time.Now().UTC()})
}

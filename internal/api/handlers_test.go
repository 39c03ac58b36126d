package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronenav/internal/config"
	"dronenav/internal/geo"
	"dronenav/internal/model"
	"dronenav/internal/store"
)

func testConfig() config.Config {
	c := config.Default()
	c.UID = "s-test"
	c.FleetFile = "../fleet/testdata/fleet.yaml"
	c.PathKeys = "grid"
	c.MaxExpansions = 100000
	return c
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, http.Handler) {
	t.Helper()
	c := testConfig()
	for _, m := range mutate {
		m(&c)
	}
	s, err := NewServer(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s, s.Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
	rr := do(t, h, http.MethodGet, "/debug/info", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"fleetFile":"../fleet/testdata/fleet.yaml"`)
}

func TestUID(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(t, h, http.MethodGet, "/api/v1/uid", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "s-test", rr.Body.String())
}

func TestGeometryEndpoints(t *testing.T) {
	_, h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/v1/distanceTo", `{"position1":{"lng":0,"lat":0},"position2":{"lng":3,"lat":4}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "5", strings.TrimSpace(rr.Body.String()))

	rr = do(t, h, http.MethodPost, "/api/v1/distanceTo", `{"position1":{"lng":0.0,"lat":0.0}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "problem+json")

	rr = do(t, h, http.MethodPost, "/api/v1/distanceTo", `{"position1":{"lng":200,"lat":0},"position2":{"lng":0,"lat":0}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/isCloseTo", `{"position1":{"lng":0,"lat":0},"position2":{"lng":0,"lat":0.0001}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", strings.TrimSpace(rr.Body.String()))

	rr = do(t, h, http.MethodPost, "/api/v1/nextPosition", `{"start":{"lng":0,"lat":0},"angle":90}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var p geo.Position
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.InDelta(t, 0, p.Lng, 1e-12)
	assert.InDelta(t, geo.MoveStep, p.Lat, 1e-12)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/nextPosition", `{"start":{"lng":0,"lat":0},"angle":10}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/nextPosition", `{"start":{"lng":0,"lat":0}}`).Code)
}

func TestInRegion(t *testing.T) {
	_, h := newTestServer(t)
	square := `[{"lng":0,"lat":0},{"lng":2,"lat":0},{"lng":2,"lat":2},{"lng":0,"lat":2},{"lng":0,"lat":0}]`

	rr := do(t, h, http.MethodPost, "/api/v1/isInRegion", `{"position":{"lng":1,"lat":1},"region":{"name":"square","vertices":`+square+`}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", strings.TrimSpace(rr.Body.String()))

	rr = do(t, h, http.MethodPost, "/api/v1/isInRegion", `{"position":{"lng":3,"lat":1},"region":{"name":"square","vertices":`+square+`}}`)
	assert.Equal(t, "false", strings.TrimSpace(rr.Body.String()))

	open := `[{"lng":0,"lat":0},{"lng":2,"lat":0},{"lng":2,"lat":2},{"lng":0,"lat":2}]`
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/isInRegion", `{"position":{"lng":1,"lat":1},"region":{"name":"open","vertices":`+open+`}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/isInRegion", `{"position":{"lng":1,"lat":1},"region":{"vertices":[{"lng":0,"lat":0},{"lng":1,"lat":0},{"lng":0,"lat":0}]}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/isInRegion", `{"position":{"lng":1,"lat":1}}`).Code)
}

func ids(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestDroneQueries(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, []string{"1"}, ids(t, do(t, h, http.MethodGet, "/api/v1/dronesWithCooling/true", "")))
	assert.Equal(t, []string{"2", "3"}, ids(t, do(t, h, http.MethodGet, "/api/v1/dronesWithCooling/false", "")))
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/dronesWithCooling/maybe", "").Code)

	rr := do(t, h, http.MethodGet, "/api/v1/droneDetails/2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var d model.Drone
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, 8.0, d.Capability.Capacity)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/droneDetails/99", "").Code)

	assert.Equal(t, []string{"2"}, ids(t, do(t, h, http.MethodGet, "/api/v1/queryAsPath/capacity/8", "")))
	assert.Equal(t, []string{}, ids(t, do(t, h, http.MethodGet, "/api/v1/queryAsPath/unknown/8", "")))

	assert.Equal(t, []string{"3"}, ids(t, do(t, h, http.MethodPost, "/api/v1/query",
		`[{"attribute":"capacity","operator":">","value":"5"},{"attribute":"heating","operator":"=","value":"false"}]`)))
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/query", `[{"attribute":"capacity","operator":">=","value":"5"}]`).Code)

	assert.Equal(t, []string{"1"}, ids(t, do(t, h, http.MethodPost, "/api/v1/queryAvailableDrones",
		`[{"id":1,"date":"2025-01-06","time":"10:00","requirements":{"capacity":1,"cooling":true},"delivery":{"lng":-3.18,"lat":55.94}}]`)))
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/queryAvailableDrones",
		`[{"id":1,"requirements":{},"delivery":{"lng":-3.18,"lat":55.94}}]`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/queryAvailableDrones",
		`[{"id":1,"date":"06/01/2025","requirements":{"capacity":1},"delivery":{"lng":-3.18,"lat":55.94}}]`).Code)
}

const mondayOrder = `[{"id":7,"date":"2025-01-06","time":"10:00","requirements":{"capacity":1},"delivery":{"lng":-3.186874,"lat":55.946}}]`

func TestDeliveryPathStoresAndNotifies(t *testing.T) {
	s, h := newTestServer(t, func(c *config.Config) { c.WebhookURLs = []string{"http://hooks.example/plan"} })
	events := s.Broker.Subscribe(TopicPlans)
	defer s.Broker.Unsubscribe(TopicPlans, events)

	rr := do(t, h, http.MethodPost, "/api/v1/calcDeliveryPath", mondayOrder)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp model.FlightResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.DronePaths, 1)
	dp := resp.DronePaths[0]
	assert.Equal(t, "1", dp.DroneID)
	require.Len(t, dp.Deliveries, 2)
	require.NotNil(t, dp.Deliveries[0].DeliveryID)
	assert.Equal(t, 7, *dp.Deliveries[0].DeliveryID)
	assert.Nil(t, dp.Deliveries[1].DeliveryID)
	assert.Positive(t, resp.TotalMoves)
	assert.Contains(t, rr.Body.String(), `"deliveryId":null`)

	planID := rr.Header().Get("X-Plan-Id")
	require.NotEmpty(t, planID)
	got := do(t, h, http.MethodGet, "/v1/plans/"+planID, "")
	require.Equal(t, http.StatusOK, got.Code)
	var stored model.Plan
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &stored))
	assert.Equal(t, []int{7}, stored.Delivered)
	assert.Equal(t, resp, stored.Response)

	mx := do(t, h, http.MethodGet, "/v1/admin/plan-metrics?planId="+planID, "")
	require.Equal(t, http.StatusOK, mx.Code)
	assert.Contains(t, mx.Body.String(), `"date":"2025-01-06"`)

	evt := <-events
	assert.Equal(t, "plan.completed", evt.Type)
	assert.Equal(t, planID, evt.Data["planId"])

	deliveries, _, err := s.Store.ListWebhookDeliveries(t.Context(), store.StatusPending, "", 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "http://hooks.example/plan", deliveries[0].URL)

	list := do(t, h, http.MethodGet, "/v1/plans?limit=1", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), planID)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/plans/missing", "").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/admin/webhook-deliveries/"+deliveries[0].ID+"/retry", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/admin/webhook-deliveries/nope/retry", "").Code)
}

func TestDeliveryPathNoDroneAvailable(t *testing.T) {
	_, h := newTestServer(t)
	// Sunday: nobody flies.
	rr := do(t, h, http.MethodPost, "/api/v1/calcDeliveryPath",
		`[{"id":1,"date":"2025-01-05","time":"10:00","requirements":{"capacity":1},"delivery":{"lng":-3.186874,"lat":55.946}}]`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"totalCost":0,"totalMoves":0,"dronePaths":[]}`, rr.Body.String())
}

func TestOrdersWithRepeatedIDRejected(t *testing.T) {
	_, h := newTestServer(t)
	body := `[{"id":7,"date":"2025-01-06","time":"10:00","requirements":{"capacity":1},"delivery":{"lng":-3.186874,"lat":55.946}},
		{"id":7,"date":"2025-01-06","time":"10:00","requirements":{"capacity":1},"delivery":{"lng":-3.1869,"lat":55.9455}}]`
	for _, path := range []string{"/api/v1/calcDeliveryPath", "/api/v1/calcDeliveryPathAsGeoJson", "/api/v1/queryAvailableDrones"} {
		rr := do(t, h, http.MethodPost, path, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.Contains(t, rr.Body.String(), "duplicate order id", path)
	}
}

func TestDeliveryPathAsGeoJSON(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(t, h, http.MethodPost, "/api/v1/calcDeliveryPathAsGeoJson", mondayOrder)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string      `json:"type"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.Type)
	assert.Equal(t, "Drone Flight Path", fc.Features[0].Properties["name"])
	first := fc.Features[0].Geometry.Coordinates[0]
	assert.Equal(t, []float64{-3.186874, 55.944494}, first)

	withAreas := do(t, h, http.MethodPost, "/api/v1/calcDeliveryPathAsGeoJson?areas=true", mondayOrder)
	assert.Contains(t, withAreas.Body.String(), "George Square Area")
}

func TestRateLimit(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) { c.RateRPS = 0.001; c.RateBurst = 1 })
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/uid", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/v1/uid", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(t, h, http.MethodGet, "/api/v1/distanceTo", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAdminAuth(t *testing.T) {
	s, h := newTestServer(t, func(c *config.Config) { c.AdminAuth = "hmac"; c.AdminSecret = "k" })
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/admin/plan-metrics", "").Code)

	get := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	admin, err := s.Auth.Issue("ops", "admin", time.Minute)
	require.NoError(t, err)
	viewer, err := s.Auth.Issue("bob", "viewer", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(admin))
	assert.Equal(t, http.StatusForbidden, get(viewer))
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/uid", "").Code)
}

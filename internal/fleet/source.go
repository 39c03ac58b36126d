// Package fleet talks to the drone inventory service and answers the fleet
// questions the planner and the API ask: which drones exist, which of them can
// serve a set of orders, and where each one is based.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

// DefaultEndpoint is the public inventory service.
const DefaultEndpoint = "https://ilp-rest-2025-bvh6e9hschfagrgy.ukwest-01.azurewebsites.net/"

// Source provides raw inventory data.
type Source interface {
	Drones(ctx context.Context) ([]model.Drone, error)
	ServicePoints(ctx context.Context) ([]model.ServicePoint, error)
	Availability(ctx context.Context) ([]model.ServicePointDrones, error)
	RestrictedAreas(ctx context.Context) ([]geo.RestrictedArea, error)
}

// Snapshot is a full copy of the inventory at one point in time.
type Snapshot struct {
	Drones          []model.Drone              `json:"drones" yaml:"drones" msgpack:"drones"`
	ServicePoints   []model.ServicePoint       `json:"servicePoints" yaml:"servicePoints" msgpack:"servicePoints"`
	Availability    []model.ServicePointDrones `json:"dronesForServicePoints" yaml:"dronesForServicePoints" msgpack:"dronesForServicePoints"`
	RestrictedAreas []geo.RestrictedArea       `json:"restrictedAreas" yaml:"restrictedAreas" msgpack:"restrictedAreas"`
}

// Take reads all four inventory collections concurrently.
func Take(ctx context.Context, src Source) (Snapshot, error) {
	var s Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { s.Drones, err = src.Drones(ctx); return })
	g.Go(func() (err error) { s.ServicePoints, err = src.ServicePoints(ctx); return })
	g.Go(func() (err error) { s.Availability, err = src.Availability(ctx); return })
	g.Go(func() (err error) { s.RestrictedAreas, err = src.RestrictedAreas(ctx); return })
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// HTTPSource fetches inventory over the inventory service's REST API.
type HTTPSource struct {
	base string
	HTTP *http.Client
}

// NewHTTPSource targets endpoint, DefaultEndpoint when empty.
func NewHTTPSource(endpoint string) *HTTPSource {
	return &HTTPSource{base: NormalizeEndpoint(endpoint), HTTP: &http.Client{Timeout: 5 * time.Second}}
}

// NormalizeEndpoint trims whitespace and ensures a single trailing slash.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return strings.TrimRight(endpoint, "/") + "/"
}

func (s *HTTPSource) Endpoint() string { return s.base }

func (s *HTTPSource) Drones(ctx context.Context) ([]model.Drone, error) {
	var out []model.Drone
	return out, s.get(ctx, "drones", &out)
}

func (s *HTTPSource) ServicePoints(ctx context.Context) ([]model.ServicePoint, error) {
	var out []model.ServicePoint
	return out, s.get(ctx, "service-points", &out)
}

func (s *HTTPSource) Availability(ctx context.Context) ([]model.ServicePointDrones, error) {
	var out []model.ServicePointDrones
	return out, s.get(ctx, "drones-for-service-points", &out)
}

func (s *HTTPSource) RestrictedAreas(ctx context.Context) ([]geo.RestrictedArea, error) {
	var out []geo.RestrictedArea
	return out, s.get(ctx, "restricted-areas", &out)
}

func (s *HTTPSource) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("inventory %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("inventory %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inventory %s: decode: %w", path, err)
	}
	return nil
}

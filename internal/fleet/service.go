package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

// Service answers fleet queries over a Source. It satisfies planner.Fleet.
type Service struct {
	src Source
	log *slog.Logger
}

func NewService(src Source, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{src: src, log: log}
}

// Freeze takes one snapshot of the source and returns a Service over it, so
// that every question asked during a single planning run sees the same data.
func (s *Service) Freeze(ctx context.Context) (*Service, error) {
	snap, err := Take(ctx, s.src)
	if err != nil {
		return nil, err
	}
	return &Service{src: StaticSource{Snap: snap}, log: s.log}, nil
}

func (s *Service) Source() Source { return s.src }

func (s *Service) ListDrones(ctx context.Context) ([]model.Drone, error) {
	return s.src.Drones(ctx)
}

func (s *Service) RestrictedAreas(ctx context.Context) ([]geo.RestrictedArea, error) {
	return s.src.RestrictedAreas(ctx)
}

// Drone looks a drone up by id.
func (s *Service) Drone(ctx context.Context, id string) (model.Drone, bool, error) {
	drones, err := s.src.Drones(ctx)
	if err != nil {
		return model.Drone{}, false, err
	}
	for _, d := range drones {
		if d.ID == id {
			return d, true, nil
		}
	}
	return model.Drone{}, false, nil
}

// DronesWithCooling returns the ids of drones whose cooling capability equals state.
func (s *Service) DronesWithCooling(ctx context.Context, state bool) ([]string, error) {
	drones, err := s.src.Drones(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, d := range drones {
		if d.Capability.Cooling == state {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// Query returns the ids of drones matching every query.
func (s *Service) Query(ctx context.Context, queries []model.Query) ([]string, error) {
	drones, err := s.src.Drones(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, d := range drones {
		if matchesAll(d, queries) {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// QueryByAttribute is Query with a single equality test.
func (s *Service) QueryByAttribute(ctx context.Context, attribute, value string) ([]string, error) {
	return s.Query(ctx, []model.Query{{Attribute: attribute, Operator: "=", Value: value}})
}

// AvailableDroneIDs returns the drones able to serve every one of orders:
// cooling, heating and capacity must fit, and the order's date and time must
// fall in one of the drone's availability windows.
func (s *Service) AvailableDroneIDs(ctx context.Context, orders []model.Order) ([]string, error) {
	ids := []string{}
	if len(orders) == 0 {
		return ids, nil
	}
	drones, err := s.src.Drones(ctx)
	if err != nil {
		return nil, err
	}
	avail, err := s.src.Availability(ctx)
	if err != nil {
		return nil, err
	}
	candidates := drones
	for _, o := range orders {
		next := candidates[:0:0]
		for _, d := range candidates {
			if canHandle(d, o, avail) {
				next = append(next, d)
			}
		}
		if len(next) == 0 {
			return ids, nil
		}
		candidates = next
	}
	for _, d := range candidates {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// HomeServicePoint resolves the service point a drone is stationed at.
func (s *Service) HomeServicePoint(ctx context.Context, droneID string) (model.ServicePoint, bool, error) {
	avail, err := s.src.Availability(ctx)
	if err != nil {
		return model.ServicePoint{}, false, err
	}
	spID, found := 0, false
	for _, sp := range avail {
		for _, da := range sp.Drones {
			if da.ID == droneID {
				spID, found = sp.ServicePointID, true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return model.ServicePoint{}, false, nil
	}
	points, err := s.src.ServicePoints(ctx)
	if err != nil {
		return model.ServicePoint{}, false, err
	}
	for _, p := range points {
		if p.ID == spID {
			return p, true, nil
		}
	}
	return model.ServicePoint{}, false, nil
}

func canHandle(d model.Drone, o model.Order, avail []model.ServicePointDrones) bool {
	req := o.Requirements
	if req.NeedsCooling() && !d.Capability.Cooling {
		return false
	}
	if req.NeedsHeating() && !d.Capability.Heating {
		return false
	}
	if req.Capacity > d.Capability.Capacity {
		return false
	}
	return AvailableAt(d.ID, o, avail)
}

// AvailableAt reports whether droneID has a window covering the order's date
// and time. Orders without a date or time fit any drone.
func AvailableAt(droneID string, o model.Order, avail []model.ServicePointDrones) bool {
	day, clock, ok, err := o.When()
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	for _, sp := range avail {
		for _, da := range sp.Drones {
			if da.ID != droneID {
				continue
			}
			for _, w := range da.Availability {
				if w.Covers(day, clock) {
					return true
				}
			}
		}
	}
	return false
}

// attribute returns the named drone attribute as a string, bool or float64.
func attribute(d model.Drone, name string) (any, bool) {
	c := d.Capability
	switch name {
	case "id":
		return d.ID, true
	case "name":
		return d.Name, true
	case "cooling":
		return c.Cooling, true
	case "heating":
		return c.Heating, true
	case "capacity":
		return c.Capacity, true
	case "maxMoves":
		return float64(c.MaxMoves), true
	case "costPerMove":
		return c.CostPerMove, true
	case "costInitial":
		return c.CostInitial, true
	case "costFinal":
		return c.CostFinal, true
	}
	return nil, false
}

func matchesAll(d model.Drone, queries []model.Query) bool {
	for _, q := range queries {
		if !matches(d, q) {
			return false
		}
	}
	return true
}

// matches evaluates one query. Numbers support = != < >, booleans and strings
// only = and !=. Unknown attributes, operators or unparsable numbers never match.
func matches(d model.Drone, q model.Query) bool {
	v, ok := attribute(d, q.Attribute)
	if !ok {
		return false
	}
	switch v := v.(type) {
	case float64:
		want, err := strconv.ParseFloat(strings.TrimSpace(q.Value), 64)
		if err != nil {
			return false
		}
		switch q.Operator {
		case "<":
			return v < want
		case ">":
			return v > want
		case "!=":
			return v != want
		case "=":
			return v == want
		}
	case bool:
		want := strings.EqualFold(q.Value, "true")
		switch q.Operator {
		case "=":
			return v == want
		case "!=":
			return v != want
		}
	case string:
		switch q.Operator {
		case "=":
			return v == q.Value
		case "!=":
			return v != q.Value
		}
	}
	return false
}

// ValidOperator reports whether op is one of the supported query operators.
func ValidOperator(op string) error {
	switch op {
	case "=", "!=", "<", ">":
		return nil
	}
	return fmt.Errorf("unsupported operator %q", op)
}

package api

import (
	"errors"
	"fmt"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

// Request shapes use pointers so that missing fields can be told apart from
// zero values.

type positionIn struct {
	Lng *float64 `json:"lng"`
	Lat *float64 `json:"lat"`
}

func (p *positionIn) position(field string) (geo.Position, error) {
	if p == nil || p.Lng == nil || p.Lat == nil {
		return geo.Position{}, fmt.Errorf("%s: lng and lat are required", field)
	}
	pos := geo.Position{Lng: *p.Lng, Lat: *p.Lat}
	if !pos.Valid() {
		return geo.Position{}, fmt.Errorf("%s: lng must be in [-180,180] and lat in [-90,90]", field)
	}
	return pos, nil
}

type pairIn struct {
	Position1 *positionIn `json:"position1"`
	Position2 *positionIn `json:"position2"`
}

func (in pairIn) positions() (geo.Position, geo.Position, error) {
	a, err := in.Position1.position("position1")
	if err != nil {
		return geo.Position{}, geo.Position{}, err
	}
	b, err := in.Position2.position("position2")
	return a, b, err
}

type nextPositionIn struct {
	Start *positionIn `json:"start"`
	Angle *float64    `json:"angle"`
}

type regionIn struct {
	Name     string        `json:"name"`
	Vertices []*positionIn `json:"vertices"`
}

type inRegionIn struct {
	Position *positionIn `json:"position"`
	Region   *regionIn   `json:"region"`
}

func (in inRegionIn) parse() (geo.Position, geo.Region, error) {
	p, err := in.Position.position("position")
	if err != nil {
		return geo.Position{}, geo.Region{}, err
	}
	if in.Region == nil {
		return geo.Position{}, geo.Region{}, errors.New("region is required")
	}
	if len(in.Region.Vertices) < 4 {
		return geo.Position{}, geo.Region{}, geo.ErrTooFewVertices
	}
	r := geo.Region{Name: in.Region.Name, Vertices: make([]geo.Position, len(in.Region.Vertices))}
	for i, v := range in.Region.Vertices {
		if r.Vertices[i], err = v.position(fmt.Sprintf("region.vertices[%d]", i)); err != nil {
			return geo.Position{}, geo.Region{}, err
		}
	}
	return p, r, nil
}

type requirementsIn struct {
	Capacity *float64 `json:"capacity"`
	Cooling  *bool    `json:"cooling"`
	Heating  *bool    `json:"heating"`
	MaxCost  *float64 `json:"maxCost"`
}

type orderIn struct {
	ID           *int            `json:"id"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	Requirements *requirementsIn `json:"requirements"`
	Delivery     *positionIn     `json:"delivery"`
}

func (in orderIn) order(i int) (model.Order, error) {
	if in.ID == nil {
		return model.Order{}, fmt.Errorf("orders[%d]: id is required", i)
	}
	if in.Requirements == nil || in.Requirements.Capacity == nil {
		return model.Order{}, fmt.Errorf("orders[%d]: requirements.capacity is required", i)
	}
	if *in.Requirements.Capacity < 0 {
		return model.Order{}, fmt.Errorf("orders[%d]: requirements.capacity must be >= 0", i)
	}
	if mc := in.Requirements.MaxCost; mc != nil && *mc < 0 {
		return model.Order{}, fmt.Errorf("orders[%d]: requirements.maxCost must be >= 0", i)
	}
	delivery, err := in.Delivery.position(fmt.Sprintf("orders[%d].delivery", i))
	if err != nil {
		return model.Order{}, err
	}
	o := model.Order{
		ID:   *in.ID,
		Date: in.Date,
		Time: in.Time,
		Requirements: model.Requirements{
			Capacity: *in.Requirements.Capacity,
			Cooling:  in.Requirements.Cooling,
			Heating:  in.Requirements.Heating,
			MaxCost:  in.Requirements.MaxCost,
		},
		Delivery: delivery,
	}
	if o.Date != "" {
		if _, err := model.ParseDate(o.Date); err != nil {
			return model.Order{}, fmt.Errorf("orders[%d].date: %w", i, err)
		}
	}
	if o.Time != "" {
		if _, err := model.ParseClock(o.Time); err != nil {
			return model.Order{}, fmt.Errorf("orders[%d].time: %w", i, err)
		}
	}
	return o, nil
}

func parseOrders(in []orderIn) ([]model.Order, error) {
	out := make([]model.Order, len(in))
	for i, o := range in {
		var err error
		if out[i], err = o.order(i); err != nil {
			return nil, err
		}
	}
	if err := model.CheckOrderIDs(out); err != nil {
		return nil, err
	}
	return out, nil
}

package model

import (
	"time"

	"dronenav/internal/geo"
)

// Core domain types shared by the planner, the fleet client and the transport.

// Order is one medical dispatch record.
type Order struct {
	ID           int          `json:"id" yaml:"id"`
	Date         string       `json:"date,omitempty" yaml:"date,omitempty"` // YYYY-MM-DD
	Time         string       `json:"time,omitempty" yaml:"time,omitempty"` // HH:MM[:SS]
	Requirements Requirements `json:"requirements" yaml:"requirements"`
	Delivery     geo.Position `json:"delivery" yaml:"delivery"`
}

// Requirements of an order. Nil optional fields are "don't care".
type Requirements struct {
	Capacity float64  `json:"capacity" yaml:"capacity"`
	Cooling  *bool    `json:"cooling,omitempty" yaml:"cooling,omitempty"`
	Heating  *bool    `json:"heating,omitempty" yaml:"heating,omitempty"`
	MaxCost  *float64 `json:"maxCost,omitempty" yaml:"maxCost,omitempty"`
}

func (r Requirements) NeedsCooling() bool { return r.Cooling != nil && *r.Cooling }
func (r Requirements) NeedsHeating() bool { return r.Heating != nil && *r.Heating }

type Drone struct {
	ID         string     `json:"id" yaml:"id" msgpack:"id"`
	Name       string     `json:"name" yaml:"name" msgpack:"name"`
	Capability Capability `json:"capability" yaml:"capability" msgpack:"capability"`
}

type Capability struct {
	Cooling     bool    `json:"cooling" yaml:"cooling" msgpack:"cooling"`
	Heating     bool    `json:"heating" yaml:"heating" msgpack:"heating"`
	Capacity    float64 `json:"capacity" yaml:"capacity" msgpack:"capacity"`
	MaxMoves    int     `json:"maxMoves" yaml:"maxMoves" msgpack:"maxMoves"`
	CostPerMove float64 `json:"costPerMove" yaml:"costPerMove" msgpack:"costPerMove"`
	CostInitial float64 `json:"costInitial" yaml:"costInitial" msgpack:"costInitial"`
	CostFinal   float64 `json:"costFinal" yaml:"costFinal" msgpack:"costFinal"`
}

// ServicePoint is a drone home base.
type ServicePoint struct {
	ID       int          `json:"id" yaml:"id" msgpack:"id"`
	Name     string       `json:"name" yaml:"name" msgpack:"name"`
	Location geo.Position `json:"location" yaml:"location" msgpack:"location"`
}

// ServicePointDrones lists the drones stationed at a service point with their
// weekly availability.
type ServicePointDrones struct {
	ServicePointID int                 `json:"servicePointId" yaml:"servicePointId" msgpack:"servicePointId"`
	Drones         []DroneAvailability `json:"drones" yaml:"drones" msgpack:"drones"`
}

type DroneAvailability struct {
	ID           string     `json:"id" yaml:"id" msgpack:"id"`
	Availability []Schedule `json:"availability" yaml:"availability" msgpack:"availability"`
}

// Schedule is one availability window, e.g. MONDAY 08:00:00-17:00:00.
type Schedule struct {
	DayOfWeek string `json:"dayOfWeek" yaml:"dayOfWeek" msgpack:"dayOfWeek"`
	From      string `json:"from" yaml:"from" msgpack:"from"`
	Until     string `json:"until" yaml:"until" msgpack:"until"`
}

// Query is one attribute filter over drones.
type Query struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
}

// Delivery is one flown leg. DeliveryID is nil for the return to base.
type Delivery struct {
	DeliveryID *int           `json:"deliveryId"`
	FlightPath []geo.Position `json:"flightPath"`
}

type DronePath struct {
	DroneID    string     `json:"droneId"`
	Deliveries []Delivery `json:"deliveries"`
}

type FlightResponse struct {
	TotalCost  float64     `json:"totalCost"`
	TotalMoves int         `json:"totalMoves"`
	DronePaths []DronePath `json:"dronePaths"`
}

// Plan is a stored FlightResponse.
type Plan struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Orders    []int          `json:"orders"`
	Delivered []int          `json:"delivered"`
	Response  FlightResponse `json:"response"`
}

// PlanMetrics are the run statistics of one planning pass for one date group.
type PlanMetrics struct {
	PlanID       string    `json:"planId"`
	Date         string    `json:"date"`
	Flights      int       `json:"flights"`
	Delivered    int       `json:"delivered"`
	Dropped      int       `json:"dropped"`
	Evicted      int       `json:"evicted"`
	PathSearches int       `json:"pathSearches"`
	TotalMoves   int       `json:"totalMoves"`
	TotalCost    float64   `json:"totalCost"`
	DurationMs   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Package geo holds the planar geometry used for drone navigation: distances,
// fixed-heading steps and no-fly polygon tests. Coordinates are treated as a
// flat (lng, lat) plane; nothing here is geodesic.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MoveStep is the length of one drone move, in degrees.
	MoveStep = 0.00015
	// HeadingIncrement is the angle between two legal headings.
	HeadingIncrement = 22.5

	headingTolerance = 1e-9
	// edgeToleranceSq is compared against squared point-segment distances.
	edgeToleranceSq = headingTolerance * headingTolerance
)

var (
	ErrInvalidHeading = errors.New("invalid heading")
	ErrOpenPolygon    = errors.New("polygon is not closed")
	ErrTooFewVertices = errors.New("polygon needs at least 4 vertices")
)

// Position is a point in (longitude, latitude) space.
type Position struct {
	Lng float64 `json:"lng" yaml:"lng" msgpack:"lng"`
	Lat float64 `json:"lat" yaml:"lat" msgpack:"lat"`
}

func (p Position) String() string { return fmt.Sprintf("(%g, %g)", p.Lng, p.Lat) }

// Valid reports whether the coordinates are within the longitude/latitude ranges.
func (p Position) Valid() bool {
	return p.Lng >= -180 && p.Lng <= 180 && p.Lat >= -90 && p.Lat <= 90
}

// Distance returns the Euclidean distance between a and b in coordinate space.
func Distance(a, b Position) float64 {
	dLng := a.Lng - b.Lng
	dLat := a.Lat - b.Lat
	return math.Sqrt(dLng*dLng + dLat*dLat)
}

// IsClose reports whether a and b are strictly less than one move apart.
func IsClose(a, b Position) bool {
	return Distance(a, b) < MoveStep
}

// ValidHeading checks that heading is in [0,360] and one of the 16 compass
// directions that are multiples of 22.5 degrees.
func ValidHeading(heading float64) error {
	if math.IsNaN(heading) || heading < 0 || heading > 360 {
		return fmt.Errorf("%w: %v is outside [0,360]", ErrInvalidHeading, heading)
	}
	rem := math.Abs(math.Mod(heading, HeadingIncrement))
	if rem > headingTolerance && math.Abs(rem-HeadingIncrement) > headingTolerance {
		return fmt.Errorf("%w: %v is not a multiple of %v", ErrInvalidHeading, heading, HeadingIncrement)
	}
	return nil
}

// Step moves one MoveStep from start along heading (degrees, 0 = east, 90 = north).
func Step(start Position, heading float64) (Position, error) {
	if err := ValidHeading(heading); err != nil {
		return Position{}, err
	}
	return step(start, heading), nil
}

func step(start Position, heading float64) Position {
	rad := heading * (math.Pi / 180)
	return Position{
		Lng: start.Lng + MoveStep*math.Cos(rad),
		Lat: start.Lat + MoveStep*math.Sin(rad),
	}
}

var headings = func() [16]float64 {
	var hs [16]float64
	for i := range hs {
		hs[i] = float64(i) * HeadingIncrement
	}
	return hs
}()

// Headings returns the 16 legal headings in ascending order.
func Headings() [16]float64 { return headings }

// StepUnchecked is Step for headings already known to be legal (e.g. from Headings).
func StepUnchecked(start Position, heading float64) Position { return step(start, heading) }

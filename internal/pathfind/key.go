package pathfind

import (
	"fmt"
	"math"
	"strings"

	"dronenav/internal/geo"
)

// KeyMode selects how search states are deduplicated.
type KeyMode int

const (
	// ExactKey merges two positions only if both coordinates are bit-for-bit
	// equal. Positions reached by different step orders usually differ in the
	// last bits and are explored separately.
	ExactKey KeyMode = iota
	// GridKey snaps coordinates to a grid of Options.GridResolution before
	// comparing, merging near-duplicates produced by rounding.
	GridKey
)

// DefaultGridResolution is far below MoveStep, so only rounding noise is merged.
const DefaultGridResolution = geo.MoveStep * 1e-6

func (m KeyMode) String() string {
	switch m {
	case ExactKey:
		return "exact"
	case GridKey:
		return "grid"
	}
	return fmt.Sprintf("KeyMode(%d)", int(m))
}

// ParseKeyMode accepts "exact" or "grid".
func ParseKeyMode(s string) (KeyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return ExactKey, nil
	case "grid":
		return GridKey, nil
	}
	return ExactKey, fmt.Errorf("unknown key mode %q (want exact or grid)", s)
}

type posKey struct{ x, y int64 }

type keyFunc func(geo.Position) posKey

func exactKey(p geo.Position) posKey {
	return posKey{int64(math.Float64bits(p.Lng)), int64(math.Float64bits(p.Lat))}
}

func gridKey(res float64) keyFunc {
	return func(p geo.Position) posKey {
		return posKey{int64(math.Round(p.Lng / res)), int64(math.Round(p.Lat / res))}
	}
}

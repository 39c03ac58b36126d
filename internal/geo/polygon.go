package geo

import "fmt"

// Region is a named closed polygon. The first and last vertices must be equal.
type Region struct {
	Name     string     `json:"name" yaml:"name"`
	Vertices []Position `json:"vertices" yaml:"vertices"`
}

// Limits are the altitude bounds of a restricted area. They are carried through
// from the inventory service but not used for planning.
type Limits struct {
	Lower *float64 `json:"lower,omitempty" yaml:"lower,omitempty" msgpack:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty" yaml:"upper,omitempty" msgpack:"upper,omitempty"`
}

// RestrictedArea is a no-fly zone.
type RestrictedArea struct {
	Name     string     `json:"name" yaml:"name" msgpack:"name"`
	ID       int        `json:"id" yaml:"id" msgpack:"id"`
	Limits   *Limits    `json:"limits,omitempty" yaml:"limits,omitempty" msgpack:"limits,omitempty"`
	Vertices []Position `json:"vertices" yaml:"vertices" msgpack:"vertices"`
}

// Region returns the area's vertex ring as a Region.
func (a RestrictedArea) Region() Region { return Region{Name: a.Name, Vertices: a.Vertices} }

// Rect is an axis-aligned bounding box.
type Rect struct {
	Min, Max Position
}

// Bounds returns the bounding box of the given points. The zero Rect is
// returned for an empty slice.
func Bounds(pts ...Position) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.Lng = min(r.Min.Lng, p.Lng)
		r.Min.Lat = min(r.Min.Lat, p.Lat)
		r.Max.Lng = max(r.Max.Lng, p.Lng)
		r.Max.Lat = max(r.Max.Lat, p.Lat)
	}
	return r
}

// CheckClosed validates that vertices form a closed ring of at least 4 points.
func CheckClosed(vertices []Position) error {
	if len(vertices) < 4 {
		return fmt.Errorf("%w: got %d", ErrTooFewVertices, len(vertices))
	}
	if vertices[0] != vertices[len(vertices)-1] {
		return fmt.Errorf("%w: first %v, last %v", ErrOpenPolygon, vertices[0], vertices[len(vertices)-1])
	}
	return nil
}

// PointInPolygon reports whether p lies inside the closed ring or on its
// boundary. Edge and vertex hits are tested separately since the crossing
// test alone is unreliable exactly on the boundary.
func PointInPolygon(p Position, vertices []Position) (bool, error) {
	if err := CheckClosed(vertices); err != nil {
		return false, err
	}
	return pointInRing(p, vertices), nil
}

// InRegion is PointInPolygon over a Region.
func InRegion(p Position, r Region) (bool, error) {
	return PointInPolygon(p, r.Vertices)
}

// PointInPolygonUnchecked is PointInPolygon for rings already validated with
// CheckClosed.
func PointInPolygonUnchecked(p Position, ring []Position) bool { return pointInRing(p, ring) }

// pointInRing assumes a validated closed ring.
func pointInRing(p Position, ring []Position) bool {
	inside := false
	for i := 0; i < len(ring)-1; i++ {
		p0, p1 := ring[i], ring[i+1]
		if (p0.Lat <= p.Lat && p.Lat < p1.Lat) || (p1.Lat <= p.Lat && p.Lat < p0.Lat) {
			x := p0.Lng + (p.Lat-p0.Lat)*(p1.Lng-p0.Lng)/(p1.Lat-p0.Lat)
			if x > p.Lng {
				inside = !inside
			}
		}
	}
	if inside {
		return true
	}
	for i := 0; i < len(ring)-1; i++ {
		if PointSegmentDistSq(p, ring[i], ring[i+1]) < edgeToleranceSq {
			return true
		}
	}
	return false
}

// PointSegmentDistSq returns the squared distance from p to the segment vw.
func PointSegmentDistSq(p, v, w Position) float64 {
	dx, dy := w.Lng-v.Lng, w.Lat-v.Lat
	px, py := p.Lng-v.Lng, p.Lat-v.Lat
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return px*px + py*py
	}
	t := (px*dx + py*dy) / l2
	t = max(0, min(1, t))
	ex, ey := px-t*dx, py-t*dy
	return ex*ex + ey*ey
}

// relativeCCW classifies p against the directed segment a->b: 1 or -1 for the
// two sides, 0 when p lies on the segment. Collinear points beyond either end
// get the sign of the end they lie past.
func relativeCCW(a, b, p Position) int {
	bx, by := b.Lng-a.Lng, b.Lat-a.Lat
	px, py := p.Lng-a.Lng, p.Lat-a.Lat
	ccw := px*by - py*bx
	if ccw == 0 {
		ccw = px*bx + py*by
		if ccw > 0 {
			px -= bx
			py -= by
			ccw = px*bx + py*by
			if ccw < 0 {
				ccw = 0
			}
		}
	}
	switch {
	case ccw < 0:
		return -1
	case ccw > 0:
		return 1
	}
	return 0
}

// SegmentsIntersect reports whether closed segments a1a2 and b1b2 share any
// point, including touching endpoints and collinear overlap.
func SegmentsIntersect(a1, a2, b1, b2 Position) bool {
	return relativeCCW(a1, a2, b1)*relativeCCW(a1, a2, b2) <= 0 &&
		relativeCCW(b1, b2, a1)*relativeCCW(b1, b2, a2) <= 0
}

// SegmentIntersectsPolygon reports whether segment ab meets any edge of the
// polygon, including the edge from the last vertex back to the first. A
// segment passing exactly through a vertex counts as a hit.
func SegmentIntersectsPolygon(a, b Position, vertices []Position) bool {
	n := len(vertices)
	for i := 0; i < n; i++ {
		if SegmentsIntersect(a, b, vertices[i], vertices[(i+1)%n]) {
			return true
		}
	}
	return false
}

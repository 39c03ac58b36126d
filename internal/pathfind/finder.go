// Package pathfind routes a drone between two positions with A* over the
// 16-heading step lattice, keeping every move out of restricted areas.
package pathfind

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"

	"dronenav/internal/geo"
)

// DefaultMaxExpansions bounds a search when Options.MaxExpansions is 0. The
// step lattice is unbounded, so a goal inside a restricted area would
// otherwise never exhaust the open set.
const DefaultMaxExpansions = 100000

// Options tune a Finder. The zero value is the default behaviour.
type Options struct {
	Keys           KeyMode
	GridResolution float64 // GridKey only; DefaultGridResolution when 0
	// MaxExpansions caps the number of expanded nodes per search; exceeding it
	// yields an empty path. 0 means DefaultMaxExpansions, negative unlimited.
	MaxExpansions int
	// OnSearch, when set, receives the counters of every finished search.
	OnSearch func(Stats)
	Logger   *slog.Logger
}

// Stats describes one search.
type Stats struct {
	Expanded int
	Pushed   int
	Found    bool
	Capped   bool
	Length   int
}

// Finder searches paths around a fixed set of restricted areas. It is safe
// for concurrent use once built.
type Finder struct {
	areas []geo.RestrictedArea
	index *areaIndex
	key   keyFunc
	opts  Options
	log   *slog.Logger
}

// NewFinder validates every area polygon and builds the broadphase index.
func NewFinder(areas []geo.RestrictedArea, opts Options) (*Finder, error) {
	for _, a := range areas {
		if err := geo.CheckClosed(a.Vertices); err != nil {
			return nil, fmt.Errorf("restricted area %q: %w", a.Name, err)
		}
	}
	ix, err := newAreaIndex(areas)
	if err != nil {
		return nil, fmt.Errorf("index restricted areas: %w", err)
	}
	f := &Finder{areas: areas, index: ix, opts: opts, log: opts.Logger}
	if f.opts.MaxExpansions == 0 {
		f.opts.MaxExpansions = DefaultMaxExpansions
	}
	switch opts.Keys {
	case GridKey:
		res := opts.GridResolution
		if res <= 0 {
			res = DefaultGridResolution
		}
		f.key = gridKey(res)
	default:
		f.key = exactKey
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f, nil
}

// FindPath is a one-off search around areas with default options, so it is
// capped at DefaultMaxExpansions.
func FindPath(start, end geo.Position, areas []geo.RestrictedArea) ([]geo.Position, error) {
	f, err := NewFinder(areas, Options{})
	if err != nil {
		return nil, err
	}
	return f.FindPath(start, end), nil
}

// Areas returns the restricted areas the finder avoids.
func (f *Finder) Areas() []geo.RestrictedArea { return f.areas }

// FindPath returns the positions from start to the first node close to end,
// or an empty slice when end cannot be reached.
func (f *Finder) FindPath(start, end geo.Position) []geo.Position {
	path, _ := f.FindPathStats(start, end)
	return path
}

// FindPathStats is FindPath plus the search counters.
func (f *Finder) FindPathStats(start, end geo.Position) ([]geo.Position, Stats) {
	var st Stats
	defer func() {
		if f.opts.OnSearch != nil {
			f.opts.OnSearch(st)
		}
	}()

	arena := make([]node, 0, 256)
	open := &openSet{arena: &arena}
	best := map[posKey]float64{}
	trace := f.log.Enabled(context.Background(), slog.LevelDebug)

	arena = append(arena, node{pos: start, g: 0, f: Heuristic(start, end), parent: noParent})
	heap.Push(open, int32(0))
	best[f.key(start)] = 0
	st.Pushed = 1

	var cand []int
	for open.Len() > 0 {
		idx := heap.Pop(open).(int32)
		cur := arena[idx]
		if g, ok := best[f.key(cur.pos)]; ok && g < cur.g {
			continue // superseded by a cheaper route to the same state
		}
		if geo.IsClose(cur.pos, end) {
			path := reconstruct(arena, idx)
			st.Found, st.Length = true, len(path)
			return path, st
		}
		st.Expanded++
		if f.opts.MaxExpansions > 0 && st.Expanded > f.opts.MaxExpansions {
			st.Capped = true
			f.log.Warn("path search capped", "start", start, "end", end, "expanded", st.Expanded)
			return []geo.Position{}, st
		}
		if trace {
			f.log.Debug("A* expand", "g", cur.g, "f", cur.f, "lng", cur.pos.Lng, "lat", cur.pos.Lat)
		}

		for _, h := range geo.Headings() {
			next := geo.StepUnchecked(cur.pos, h)
			if f.moveInvalid(cur.pos, next, &cand) {
				continue
			}
			g := cur.g + geo.MoveStep
			k := f.key(next)
			known, seen := best[k]
			if seen && g >= known {
				continue
			}
			best[k] = g
			arena = append(arena, node{pos: next, g: g, f: g + Heuristic(next, end), parent: idx})
			heap.Push(open, int32(len(arena)-1))
			st.Pushed++
		}
	}
	return []geo.Position{}, st
}

// MoveInvalid reports whether flying straight from a to b enters or crosses
// any restricted area.
func (f *Finder) MoveInvalid(a, b geo.Position) bool {
	var cand []int
	return f.moveInvalid(a, b, &cand)
}

func (f *Finder) moveInvalid(a, b geo.Position, cand *[]int) bool {
	*cand = f.index.candidates(a, b, *cand)
	for _, i := range *cand {
		ring := f.areas[i].Vertices
		if geo.PointInPolygonUnchecked(b, ring) {
			return true
		}
		if geo.SegmentIntersectsPolygon(a, b, ring) {
			return true
		}
	}
	return false
}

func reconstruct(arena []node, idx int32) []geo.Position {
	n := 0
	for i := idx; i != noParent; i = arena[i].parent {
		n++
	}
	path := make([]geo.Position, n)
	for i := idx; i != noParent; i = arena[i].parent {
		n--
		path[n] = arena[i].pos
	}
	return path
}

// Heuristic is the straight-line distance used to order the search.
func Heuristic(a, b geo.Position) float64 { return geo.Distance(a, b) }

// Moves returns the number of steps in a path: one less than its length.
func Moves(path []geo.Position) int {
	if len(path) == 0 {
		return 0
	}
	return len(path) - 1
}

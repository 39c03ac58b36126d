package pathfind

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronenav/internal/geo"
)

var origin = geo.Position{Lng: -3.186874, Lat: 55.944494}

func offset(p geo.Position, dLng, dLat float64) geo.Position {
	return geo.Position{Lng: p.Lng + dLng, Lat: p.Lat + dLat}
}

func box(name string, minP, maxP geo.Position) geo.RestrictedArea {
	return geo.RestrictedArea{Name: name, Vertices: []geo.Position{
		minP,
		{Lng: maxP.Lng, Lat: minP.Lat},
		maxP,
		{Lng: minP.Lng, Lat: maxP.Lat},
		minP,
	}}
}

// assertLegal checks the shape of a found path: starts at start, ends close to
// end, and every leg is one move on a legal heading.
func assertLegal(t *testing.T, f *Finder, path []geo.Position, start, end geo.Position) {
	t.Helper()
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0])
	assert.True(t, geo.IsClose(path[len(path)-1], end), "last %v not close to %v", path[len(path)-1], end)
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		assert.InDelta(t, geo.MoveStep, geo.Distance(a, b), 1e-12, "leg %d", i)
		deg := math.Atan2(b.Lat-a.Lat, b.Lng-a.Lng) * 180 / math.Pi
		if deg < 0 {
			deg += 360
		}
		rem := math.Mod(deg+1e-6, geo.HeadingIncrement)
		assert.Less(t, rem, 2e-6, "leg %d heading %v", i, deg)
		assert.False(t, f.MoveInvalid(a, b), "leg %d crosses a restricted area", i)
	}
}

func TestFindPathFreeSpace(t *testing.T) {
	f, err := NewFinder(nil, Options{})
	require.NoError(t, err)
	end := offset(origin, 10.5*geo.MoveStep, 0)
	path := f.FindPath(origin, end)
	assertLegal(t, f, path, origin, end)
	assert.Equal(t, 10, Moves(path))
}

func TestFindPathAlreadyClose(t *testing.T) {
	f, err := NewFinder(nil, Options{})
	require.NoError(t, err)
	path := f.FindPath(origin, offset(origin, geo.MoveStep/2, 0))
	assert.Equal(t, []geo.Position{origin}, path)
	assert.Equal(t, 0, Moves(path))
}

func TestFindPathAroundWall(t *testing.T) {
	wall := box("wall",
		offset(origin, 4*geo.MoveStep, -1.5*geo.MoveStep),
		offset(origin, 4.3*geo.MoveStep, 1.5*geo.MoveStep))
	f, err := NewFinder([]geo.RestrictedArea{wall}, Options{Keys: GridKey, MaxExpansions: 200000})
	require.NoError(t, err)

	end := offset(origin, 9.5*geo.MoveStep, 0)
	path, st := f.FindPathStats(origin, end)
	require.True(t, st.Found)
	assertLegal(t, f, path, origin, end)
	var reach float64
	for _, p := range path {
		assert.False(t, geo.PointInPolygonUnchecked(p, wall.Vertices), "%v inside wall", p)
		reach = max(reach, math.Abs(p.Lat-origin.Lat))
	}
	assert.Greater(t, reach, 1.5*geo.MoveStep, "path must go around the wall")
}

func TestFindPathNoCornerCutting(t *testing.T) {
	b := box("b", origin, offset(origin, geo.MoveStep, geo.MoveStep))
	f, err := NewFinder([]geo.RestrictedArea{b}, Options{})
	require.NoError(t, err)

	// Diagonal across the lower-right corner: both ends outside.
	below := offset(origin, 0.8*geo.MoveStep, -0.1*geo.MoveStep)
	beside := offset(origin, 1.1*geo.MoveStep, 0.2*geo.MoveStep)
	assert.True(t, f.MoveInvalid(below, beside))
	// Straight through the middle: both ends outside, still invalid.
	left := offset(origin, -geo.MoveStep*0.1, geo.MoveStep*0.5)
	right := offset(origin, geo.MoveStep*1.1, geo.MoveStep*0.5)
	assert.True(t, f.MoveInvalid(left, right))
	assert.False(t, f.MoveInvalid(left, offset(left, 0, geo.MoveStep)))
}

func TestFindPathEnclosedGoalIsCapped(t *testing.T) {
	cage := box("cage", offset(origin, 5*geo.MoveStep, -5*geo.MoveStep), offset(origin, 15*geo.MoveStep, 5*geo.MoveStep))
	var got Stats
	f, err := NewFinder([]geo.RestrictedArea{cage}, Options{
		Keys:          GridKey,
		MaxExpansions: 500,
		OnSearch:      func(s Stats) { got = s },
	})
	require.NoError(t, err)

	path := f.FindPath(origin, offset(origin, 10*geo.MoveStep, 0))
	assert.NotNil(t, path)
	assert.Empty(t, path)
	assert.True(t, got.Capped)
	assert.False(t, got.Found)
	assert.Equal(t, 501, got.Expanded)
}

func TestFindPathEnclosedGoalDefaultOptions(t *testing.T) {
	cage := box("cage", offset(origin, 5*geo.MoveStep, -5*geo.MoveStep), offset(origin, 15*geo.MoveStep, 5*geo.MoveStep))
	areas := []geo.RestrictedArea{cage}

	f, err := NewFinder(areas, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxExpansions, f.opts.MaxExpansions)
	unbounded, err := NewFinder(areas, Options{MaxExpansions: -1})
	require.NoError(t, err)
	assert.Equal(t, -1, unbounded.opts.MaxExpansions)

	done := make(chan []geo.Position, 1)
	go func() {
		path, err := FindPath(origin, offset(origin, 10*geo.MoveStep, 0), areas)
		assert.NoError(t, err)
		done <- path
	}()
	select {
	case path := <-done:
		assert.NotNil(t, path)
		assert.Empty(t, path)
	case <-time.After(60 * time.Second):
		t.Fatal("search for an enclosed goal did not stop")
	}
}

func TestFindPathDeterministic(t *testing.T) {
	wall := box("wall",
		offset(origin, 3*geo.MoveStep, -1.5*geo.MoveStep),
		offset(origin, 3.3*geo.MoveStep, 1.5*geo.MoveStep))
	f, err := NewFinder([]geo.RestrictedArea{wall}, Options{Keys: GridKey, MaxExpansions: 200000})
	require.NoError(t, err)
	end := offset(origin, 7*geo.MoveStep, geo.MoveStep)
	first := f.FindPath(origin, end)
	require.NotEmpty(t, first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, f.FindPath(origin, end))
	}
}

func TestNewFinderRejectsOpenPolygon(t *testing.T) {
	bad := geo.RestrictedArea{Name: "open", Vertices: []geo.Position{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	_, err := NewFinder([]geo.RestrictedArea{bad}, Options{})
	require.ErrorIs(t, err, geo.ErrOpenPolygon)

	_, err = FindPath(origin, origin, []geo.RestrictedArea{bad})
	require.Error(t, err)
}

func TestParseKeyMode(t *testing.T) {
	m, err := ParseKeyMode("GRID")
	require.NoError(t, err)
	assert.Equal(t, GridKey, m)
	m, err = ParseKeyMode("")
	require.NoError(t, err)
	assert.Equal(t, ExactKey, m)
	_, err = ParseKeyMode("fuzzy")
	assert.Error(t, err)
	assert.Equal(t, "grid", GridKey.String())
}

func TestCachedFinder(t *testing.T) {
	f, err := NewFinder(nil, Options{})
	require.NoError(t, err)
	c, err := NewCachedFinder(f, 4)
	require.NoError(t, err)

	end := offset(origin, 0, 5*geo.MoveStep)
	p1 := c.FindPath(origin, end)
	p2 := c.FindPath(origin, end)
	assert.Equal(t, p1, p2)
	assert.Equal(t, f.FindPath(origin, end), p1)

	// callers may mutate what they get back
	p2[0] = geo.Position{}
	assert.Equal(t, origin, c.FindPath(origin, end)[0])

	hits, misses := c.CacheStats()
	assert.EqualValues(t, 2, hits)
	assert.EqualValues(t, 1, misses)
}

package pathfind

import "dronenav/internal/geo"

// node is one entry of the search arena. parent is an index into the same
// arena; the start node has parent noParent.
type node struct {
	pos    geo.Position
	g, f   float64
	parent int32
}

const noParent int32 = -1

// openSet is a binary min-heap of arena indices ordered by f. Equal f prefers
// the deeper node (larger g) and then the earlier insertion, so the pop order
// is fully deterministic.
type openSet struct {
	arena *[]node
	items []int32
}

func (o openSet) Len() int { return len(o.items) }

func (o openSet) Less(i, j int) bool {
	a, b := (*o.arena)[o.items[i]], (*o.arena)[o.items[j]]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.g != b.g {
		return a.g > b.g
	}
	return o.items[i] < o.items[j]
}

func (o openSet) Swap(i, j int) { o.items[i], o.items[j] = o.items[j], o.items[i] }

func (o *openSet) Push(x any) { o.items = append(o.items, x.(int32)) }

func (o *openSet) Pop() any {
	old := o.items
	n := len(old)
	item := old[n-1]
	o.items = old[:n-1]
	return item
}

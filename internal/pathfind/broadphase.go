package pathfind

import (
	"github.com/dhconnelly/rtreego"

	"dronenav/internal/geo"
)

const (
	minChildren = 2
	maxChildren = 8
	dimensions  = 2
	// boxPad grows every box so that touching boxes (and zero-width step
	// boxes) still overlap in the tree's strict comparison.
	boxPad = 1e-9
)

// areaItem wraps a restricted area for R-tree indexing.
type areaItem struct {
	idx  int
	rect *rtreego.Rect
}

func (a *areaItem) Bounds() *rtreego.Rect { return a.rect }

// areaIndex answers "which restricted areas could a step touch" using the
// areas' bounding boxes. Exact tests still run on every candidate.
type areaIndex struct {
	tree *rtreego.Rtree
}

func newAreaIndex(areas []geo.RestrictedArea) (*areaIndex, error) {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for i, a := range areas {
		rect, err := paddedRect(geo.Bounds(a.Vertices...))
		if err != nil {
			return nil, err
		}
		tree.Insert(&areaItem{idx: i, rect: rect})
	}
	return &areaIndex{tree: tree}, nil
}

// candidates returns the indices of areas whose box meets the box of segment ab.
func (ix *areaIndex) candidates(a, b geo.Position, buf []int) []int {
	buf = buf[:0]
	rect, err := paddedRect(geo.Bounds(a, b))
	if err != nil {
		return buf
	}
	for _, s := range ix.tree.SearchIntersect(rect) {
		buf = append(buf, s.(*areaItem).idx)
	}
	return buf
}

func paddedRect(r geo.Rect) (*rtreego.Rect, error) {
	origin := rtreego.Point{r.Min.Lng - boxPad, r.Min.Lat - boxPad}
	lengths := []float64{r.Max.Lng - r.Min.Lng + 2*boxPad, r.Max.Lat - r.Min.Lat + 2*boxPad}
	return rtreego.NewRect(origin, lengths)
}

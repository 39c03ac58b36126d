package planner

import (
	"math"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

// nearestNeighbor orders orders greedily: starting at start, repeatedly take
// the closest remaining delivery point. The earliest order wins ties.
func nearestNeighbor(start geo.Position, orders []model.Order) []model.Order {
	remaining := append([]model.Order(nil), orders...)
	route := make([]model.Order, 0, len(orders))
	cur := start
	for len(remaining) > 0 {
		best, bestDist := -1, math.MaxFloat64
		for i, o := range remaining {
			if d := geo.Distance(cur, o.Delivery); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			// NaN coordinates compare false against everything
			best = 0
		}
		next := remaining[best]
		route = append(route, next)
		remaining = append(remaining[:best], remaining[best+1:]...)
		cur = next.Delivery
	}
	return route
}

// routeLength is the straight-line length of visiting orders from start.
func routeLength(start geo.Position, orders []model.Order) float64 {
	total := 0.0
	cur := start
	for _, o := range orders {
		total += geo.Distance(cur, o.Delivery)
		cur = o.Delivery
	}
	return total
}

package planner

import (
	"context"
	"log/slog"

	"dronenav/internal/geo"
	"dronenav/internal/model"
	"dronenav/internal/pathfind"
)

// Each accepted delivery is charged two moves beyond its path for takeoff
// and landing.
const deliveryOverheadMoves = 2

// flight is one drone sortie from its base and back.
type flight struct {
	droneID    string
	drone      model.Drone
	deliveries []model.Delivery
	packed     []model.Order
	moves      int
	cost       float64
}

// groupRun holds what one date group needs while its loop runs. It is owned
// by a single goroutine.
type groupRun struct {
	fleet Fleet
	paths pathfind.Searcher
	log   *slog.Logger
	stats GroupStats
}

func (g *groupRun) findPath(from, to geo.Position) []geo.Position {
	g.stats.PathSearches++
	return g.paths.FindPath(from, to)
}

func (g *groupRun) available(ctx context.Context, orders []model.Order) []string {
	ids, err := g.fleet.AvailableDroneIDs(ctx, orders)
	if err != nil {
		g.log.Warn("drone availability unavailable", "err", err)
		return nil
	}
	return ids
}

// advance runs one iteration of the batching loop. Every call either drops
// an order, marks orders failed or commits a flight, so the loop terminates.
func (g *groupRun) advance(ctx context.Context, st groupState) (groupState, *flight) {
	active := st.active()
	first := active[0]

	ids := g.available(ctx, active)
	if len(ids) == 0 {
		ids = g.available(ctx, active[:1])
	}
	if len(ids) == 0 {
		g.log.Warn("no drone available for order", "order", first.ID)
		g.stats.Dropped++
		return st.drop(first.ID), nil
	}

	droneID := ids[0]
	drone, ok, err := g.fleet.Drone(ctx, droneID)
	if err != nil || !ok {
		g.log.Warn("drone details unavailable", "drone", droneID, "order", first.ID, "err", err)
		g.stats.Dropped++
		return st.drop(first.ID), nil
	}
	base, ok, err := g.fleet.HomeServicePoint(ctx, droneID)
	if err != nil || !ok {
		g.log.Warn("drone has no home service point", "drone", droneID, "order", first.ID, "err", err)
		g.stats.Dropped++
		return st.drop(first.ID), nil
	}

	queue := nearestNeighbor(base.Location, active)
	f := g.pack(drone, base, queue)
	if len(f.packed) == 0 {
		g.log.Warn("drone cannot carry first order", "drone", droneID, "order", first.ID)
		g.stats.Dropped++
		return st.drop(first.ID), nil
	}
	g.returnToBase(f, base)

	if evicted := f.overBudget(); len(evicted) > 0 {
		g.log.Info("orders over max cost, flight discarded",
			"drone", droneID, "evicted", orderIDs(evicted), "flightCost", f.cost, "share", f.share())
		g.stats.Evicted += len(evicted)
		return st.fail(evicted), nil
	}

	g.stats.Flights++
	g.stats.Delivered += len(f.packed)
	g.stats.Moves += f.moves
	g.stats.Cost += f.cost
	g.log.Debug("flight committed", "drone", droneID, "orders", orderIDs(f.packed),
		"moves", f.moves, "cost", f.cost, "straightLine", routeLength(base.Location, f.packed))
	return st.remove(f.packed), f
}

// pack loads queue onto one flight in order and stops at the first order
// that does not fit. An order fits if the payload stays within capacity, a
// path to it exists and the moves so far plus its leg plus the way home stay
// within the drone's maximum.
func (g *groupRun) pack(drone model.Drone, base model.ServicePoint, queue []model.Order) *flight {
	f := &flight{droneID: drone.ID, drone: drone}
	limit := drone.Capability
	cur := base.Location
	payload := 0.0
	for _, o := range queue {
		if payload+o.Requirements.Capacity > limit.Capacity {
			break
		}
		path := g.findPath(cur, o.Delivery)
		if len(path) == 0 {
			g.log.Warn("no path to delivery", "order", o.ID, "from", cur, "to", o.Delivery)
			break
		}
		home := g.findPath(o.Delivery, base.Location)
		leg := pathfind.Moves(path) + deliveryOverheadMoves
		if f.moves+leg+pathfind.Moves(home) > limit.MaxMoves {
			break
		}

		f.moves += leg
		payload += o.Requirements.Capacity
		hover := path[len(path)-1]
		path = append(path, hover)
		id := o.ID
		f.deliveries = append(f.deliveries, model.Delivery{DeliveryID: &id, FlightPath: path})
		f.packed = append(f.packed, o)
		cur = hover
	}
	return f
}

// returnToBase appends the leg home and prices the flight.
func (g *groupRun) returnToBase(f *flight, base model.ServicePoint) {
	last := f.deliveries[len(f.deliveries)-1].FlightPath
	home := g.findPath(last[len(last)-1], base.Location)
	if len(home) > 0 {
		f.deliveries = append(f.deliveries, model.Delivery{DeliveryID: nil, FlightPath: home})
		f.moves += pathfind.Moves(home)
	}
	c := f.drone.Capability
	f.cost = c.CostInitial + c.CostFinal + float64(f.moves)*c.CostPerMove
}

// share is the flight cost split evenly over its orders.
func (f *flight) share() float64 { return f.cost / float64(len(f.packed)) }

// overBudget returns the packed orders whose max cost is below their share.
func (f *flight) overBudget() []model.Order {
	share := f.share()
	var out []model.Order
	for _, o := range f.packed {
		if mc := o.Requirements.MaxCost; mc != nil && share > *mc {
			out = append(out, o)
		}
	}
	return out
}

func orderIDs(orders []model.Order) []int {
	ids := make([]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

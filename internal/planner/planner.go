// Package planner batches delivery orders onto drone flights. Orders are
// grouped by date; within a group a drone is chosen, the queue is ordered by
// nearest neighbour from the drone's base and orders are packed greedily until
// payload, battery (move count) or path constraints stop the flight.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"dronenav/internal/geo"
	"dronenav/internal/model"
	"dronenav/internal/pathfind"
)

// Fleet answers the planner's questions about drones and airspace.
type Fleet interface {
	ListDrones(ctx context.Context) ([]model.Drone, error)
	// AvailableDroneIDs returns the drones that can serve every given order.
	AvailableDroneIDs(ctx context.Context, orders []model.Order) ([]string, error)
	Drone(ctx context.Context, id string) (model.Drone, bool, error)
	HomeServicePoint(ctx context.Context, droneID string) (model.ServicePoint, bool, error)
	RestrictedAreas(ctx context.Context) ([]geo.RestrictedArea, error)
}

type Options struct {
	Path pathfind.Options
	// CacheSize bounds the per-run leg cache; pathfind.DefaultCacheSize when 0.
	CacheSize int
	// Sequential plans date groups one after another instead of concurrently.
	Sequential bool
	Logger     *slog.Logger
	Tracer     trace.Tracer
	// Observe receives the statistics of every planned date group.
	Observe func(GroupStats)
}

// GroupStats summarize the planning of one date group.
type GroupStats struct {
	Date         string
	Orders       int
	Flights      int
	Delivered    int
	Dropped      int
	Evicted      int
	PathSearches int
	Moves        int
	Cost         float64
	Duration     time.Duration
}

// Result is a FlightResponse plus what it took to build it.
type Result struct {
	Response  model.FlightResponse
	Groups    []GroupStats
	Delivered []int
	// Leg cache counters of the run.
	CacheHits, CacheMisses int64
}

type Planner struct {
	fleet  Fleet
	opts   Options
	log    *slog.Logger
	tracer trace.Tracer
}

func New(f Fleet, opts Options) *Planner {
	p := &Planner{fleet: f, opts: opts, log: opts.Logger, tracer: opts.Tracer}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("dronenav/planner")
	}
	if p.opts.Path.Logger == nil {
		p.opts.Path.Logger = p.log
	}
	return p
}

// Plan computes the flights for orders.
func (p *Planner) Plan(ctx context.Context, orders []model.Order) (model.FlightResponse, error) {
	r, err := p.Run(ctx, orders)
	return r.Response, err
}

// Run is Plan with per-group statistics. The only errors are repeated order
// ids, malformed restricted areas and context cancellation; fleet failures
// degrade to fewer or no flights.
func (p *Planner) Run(ctx context.Context, orders []model.Order) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "planner.Plan", trace.WithAttributes(attribute.Int("orders", len(orders))))
	defer span.End()

	res := Result{Response: model.FlightResponse{DronePaths: []model.DronePath{}}, Delivered: []int{}}
	// groupState tracks orders by id
	if err := model.CheckOrderIDs(orders); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	if len(orders) == 0 {
		return res, nil
	}

	areas, err := p.fleet.RestrictedAreas(ctx)
	if err != nil {
		p.log.Error("restricted areas unavailable, planning nothing", "err", err)
		span.RecordError(err)
		return res, nil
	}
	finder, err := pathfind.NewFinder(areas, p.opts.Path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	paths, err := pathfind.NewCachedFinder(finder, p.opts.CacheSize)
	if err != nil {
		return res, err
	}

	dates, groups := groupByDate(orders)
	results := make([]groupResult, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	if p.opts.Sequential {
		g.SetLimit(1)
	}
	for i, date := range dates {
		g.Go(func() error {
			r, err := p.planGroup(gctx, date, groups[date], paths)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	for _, r := range results {
		for _, f := range r.flights {
			res.Response.TotalCost += f.cost
			res.Response.TotalMoves += f.moves
			res.Response.DronePaths = append(res.Response.DronePaths, model.DronePath{DroneID: f.droneID, Deliveries: f.deliveries})
			for _, o := range f.packed {
				res.Delivered = append(res.Delivered, o.ID)
			}
		}
		res.Groups = append(res.Groups, r.stats)
	}
	hits, misses := paths.CacheStats()
	res.CacheHits, res.CacheMisses = hits, misses
	span.SetAttributes(
		attribute.Int("flights", len(res.Response.DronePaths)),
		attribute.Int("delivered", len(res.Delivered)),
		attribute.Int64("path_cache_hits", hits),
		attribute.Int64("path_cache_misses", misses),
	)
	return res, nil
}

// groupByDate partitions orders by date, keeping each group in input order.
// Dates are returned ascending; undated orders sort first under "".
func groupByDate(orders []model.Order) ([]string, map[string][]model.Order) {
	groups := map[string][]model.Order{}
	for _, o := range orders {
		groups[o.Date] = append(groups[o.Date], o)
	}
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates, groups
}

type groupResult struct {
	flights []*flight
	stats   GroupStats
}

func (p *Planner) planGroup(ctx context.Context, date string, orders []model.Order, paths pathfind.Searcher) (groupResult, error) {
	ctx, span := p.tracer.Start(ctx, "planner.group", trace.WithAttributes(
		attribute.String("date", date), attribute.Int("orders", len(orders))))
	defer span.End()

	run := &groupRun{
		fleet: p.fleet,
		paths: paths,
		log:   p.log.With("date", date),
		stats: GroupStats{Date: date, Orders: len(orders)},
	}
	start := time.Now()
	var flights []*flight
	for st := newGroupState(orders); !st.done(); {
		if err := ctx.Err(); err != nil {
			return groupResult{}, fmt.Errorf("planning %q: %w", date, err)
		}
		var f *flight
		st, f = run.advance(ctx, st)
		if f != nil {
			flights = append(flights, f)
		}
	}
	run.stats.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("flights", run.stats.Flights),
		attribute.Int("dropped", run.stats.Dropped),
		attribute.Int("evicted", run.stats.Evicted),
	)
	if p.opts.Observe != nil {
		p.opts.Observe(run.stats)
	}
	return groupResult{flights: flights, stats: run.stats}, nil
}

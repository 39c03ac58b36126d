// Package api implements the HTTP surface of the drone navigation service.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"dronenav/internal/auth"
	"dronenav/internal/config"
	"dronenav/internal/fleet"
	"dronenav/internal/metrics"
	"dronenav/internal/pathfind"
	"dronenav/internal/planner"
	"dronenav/internal/store"
	"dronenav/internal/webhooks"
)

type Server struct {
	Cfg    config.Config
	Log    *slog.Logger
	Store  store.Store
	Fleet  *fleet.Service
	Pub    *webhooks.Publisher
	Broker EventBroker
	Runs   *planner.Runs
	Auth   *auth.Verifier

	limiter *rate.Limiter
}

// NewServer wires dependencies from cfg. Without DATABASE_URL plans live in
// memory; without REDIS_URL events stay in process and fleet data is not cached.
func NewServer(cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	verifier, err := auth.NewVerifier(cfg.AdminAuth, cfg.AdminSecret)
	if err != nil {
		return nil, err
	}
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBMigrate {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				log.Warn("migrations failed", "err", err)
			}
		}
		s = sp
	}

	var src fleet.Source
	if cfg.FleetFile != "" {
		snap, err := fleet.LoadSnapshot(cfg.FleetFile)
		if err != nil {
			return nil, err
		}
		src = fleet.StaticSource{Snap: snap}
	} else {
		src = fleet.NewHTTPSource(cfg.ILPEndpoint)
	}

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opt)
		src = fleet.NewRedisCache(rdb, src, cfg.FleetCacheTTL, log)
		broker = NewRedisBroker(rdb, log)
	}

	srv := &Server{
		Cfg:    cfg,
		Log:    log,
		Store:  s,
		Fleet:  fleet.NewService(src, log),
		Pub:    webhooks.NewPublisher(s, cfg.WebhookURLs, cfg.WebhookSecret, log),
		Broker: broker,
		Runs:   planner.NewRuns(),
		Auth:   verifier,
	}
	if cfg.RateRPS > 0 {
		srv.limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)
	}
	return srv, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts, s.Log)
}

// plannerFor builds a planner over f that reports into metrics and Runs.
func (s *Server) plannerFor(f planner.Fleet) *planner.Planner {
	opts := s.Cfg.PathOptions()
	opts.OnSearch = func(st pathfind.Stats) {
		metrics.ObservePathSearch(st.Expanded, st.Found, st.Capped)
	}
	return planner.New(f, planner.Options{
		Path:      opts,
		CacheSize: s.Cfg.PathCacheSize,
		Logger:    s.Log,
		Observe: planner.Chain(s.Runs.Record, func(g planner.GroupStats) {
			metrics.ObserveGroup(g.Flights, g.Delivered, g.Dropped, g.Evicted, g.Duration)
		}),
	})
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Geometry
	mux.HandleFunc("GET /api/v1/uid", s.UIDHandler)
	mux.HandleFunc("POST /api/v1/distanceTo", s.DistanceHandler)
	mux.HandleFunc("POST /api/v1/isCloseTo", s.IsCloseHandler)
	mux.HandleFunc("POST /api/v1/nextPosition", s.NextPositionHandler)
	mux.HandleFunc("POST /api/v1/isInRegion", s.InRegionHandler)

	// Fleet queries
	mux.HandleFunc("GET /api/v1/dronesWithCooling/{state}", s.DronesWithCoolingHandler)
	mux.HandleFunc("GET /api/v1/droneDetails/{id}", s.DroneDetailsHandler)
	mux.HandleFunc("GET /api/v1/queryAsPath/{attribute}/{value}", s.QueryAsPathHandler)
	mux.HandleFunc("POST /api/v1/query", s.QueryHandler)
	mux.HandleFunc("POST /api/v1/queryAvailableDrones", s.AvailableDronesHandler)

	// Planning
	mux.HandleFunc("POST /api/v1/calcDeliveryPath", s.DeliveryPathHandler)
	mux.HandleFunc("POST /api/v1/calcDeliveryPathAsGeoJson", s.DeliveryPathGeoJSONHandler)
	mux.HandleFunc("GET /v1/plans", s.PlansHandler)
	mux.HandleFunc("GET /v1/plans/stream", s.PlanStreamHandler)
	mux.HandleFunc("GET /v1/plans/{id}", s.PlanByIDHandler)

	// Admin
	mux.Handle("GET /v1/admin/plan-metrics", s.adminOnly(s.PlanMetricsHandler))
	mux.Handle("GET /v1/admin/webhook-deliveries", s.adminOnly(s.WebhookDeliveriesHandler))
	mux.Handle("POST /v1/admin/webhook-deliveries/{id}/retry", s.adminOnly(s.WebhookDeliveryRetryHandler))
	mux.Handle("POST /v1/admin/fleet-cache/invalidate", s.adminOnly(s.FleetCacheInvalidateHandler))

	// Health and introspection
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /debug/info", s.DebugJSON)

	return s.rateLimit(mux)
}

// rateLimit rejects API calls beyond the configured rate with 429. Health,
// readiness and metrics are exempt.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
		default:
			if !s.limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// adminOnly answers 401 without valid credentials and 403 without the admin role.
func (s *Server) adminOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Auth.FromRequest(r)
		switch {
		case errors.Is(err, auth.ErrForbidden):
			writeProblem(w, http.StatusForbidden, "Forbidden", err.Error(), r.URL.Path)
			return
		case err != nil:
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
			return
		}
		if p.Subject != "" {
			s.Log.Debug("admin request", "subject", p.Subject, "path", r.URL.Path)
		}
		next(w, r)
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the store.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// FleetCacheInvalidateHandler drops cached fleet data when Redis caching is on.
func (s *Server) FleetCacheInvalidateHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.Fleet.Source().(*fleet.RedisCache)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"invalidated": false})
		return
	}
	if err := c.Invalidate(r.Context()); err != nil {
		writeProblem(w, http.StatusBadGateway, "Invalidate failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": true})
}

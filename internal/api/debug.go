package api

import (
	"net/http"
	"time"

	"dronenav/internal/buildinfo"
)

// DebugJSON reports build information and the effective non-secret config.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Cfg
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":               c.Port,
			"ilpEndpoint":        c.ILPEndpoint,
			"fleetFile":          c.FleetFile,
			"rateRps":            c.RateRPS,
			"rateBurst":          c.RateBurst,
			"webhookUrls":        len(c.WebhookURLs),
			"webhookMaxAttempts": c.WebhookMaxAttempts,
			"pathKeys":           c.PathKeys,
			"pathCacheSize":      c.PathCacheSize,
			"maxExpansions":      c.MaxExpansions,
			"tracing":            c.Tracing,
			"hasDatabaseUrl":     c.DatabaseURL != "",
			"hasRedisUrl":        c.RedisURL != "",
			"adminAuth":          c.AdminAuth,
		},
	}
	writeJSON(w, http.StatusOK, info)
}

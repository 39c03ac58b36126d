// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file, the file over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"dronenav/internal/fleet"
	"dronenav/internal/pathfind"
)

// EnvFile names the variable holding the YAML config path.
const EnvFile = "DRONENAV_CONFIG"

type Config struct {
	UID                string        `yaml:"uid"`
	Port               string        `yaml:"port"`
	ILPEndpoint        string        `yaml:"ilpEndpoint"`
	FleetFile          string        `yaml:"fleetFile"`
	DatabaseURL        string        `yaml:"databaseUrl"`
	DBMigrate          bool          `yaml:"dbMigrate"`
	RedisURL           string        `yaml:"redisUrl"`
	FleetCacheTTL      time.Duration `yaml:"fleetCacheTtl"`
	RateRPS            float64       `yaml:"rateRps"`
	RateBurst          int           `yaml:"rateBurst"`
	WebhookURLs        []string      `yaml:"webhookUrls"`
	WebhookSecret      string        `yaml:"webhookSecret"`
	WebhookMaxAttempts int           `yaml:"webhookMaxAttempts"`
	LogLevel           string        `yaml:"logLevel"`
	LogFile            string        `yaml:"logFile"`
	Tracing            string        `yaml:"tracing"`
	PathCacheSize      int           `yaml:"pathCacheSize"`
	MaxExpansions      int           `yaml:"maxExpansions"`
	PathKeys           string        `yaml:"pathKeys"`

	// AdminAuth guards /v1/admin: none, token or hmac.
	AdminAuth   string `yaml:"adminAuth"`
	AdminSecret string `yaml:"adminSecret"`
}

func Default() Config {
	return Config{
		UID:                "dronenav",
		Port:               "8080",
		ILPEndpoint:        fleet.DefaultEndpoint,
		DBMigrate:          true,
		FleetCacheTTL:      time.Minute,
		RateRPS:            0,
		RateBurst:          20,
		WebhookMaxAttempts: 10,
		LogLevel:           "info",
		PathCacheSize:      pathfind.DefaultCacheSize,
		MaxExpansions:      pathfind.DefaultMaxExpansions,
		PathKeys:           "exact",
		AdminAuth:          "none",
	}
}

// Load reads the file named by DRONENAV_CONFIG, if any, then applies env.
func Load() (Config, error) {
	return load(os.Getenv(EnvFile), os.LookupEnv)
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(lookup); err != nil {
		return c, err
	}
	c.ILPEndpoint = fleet.NormalizeEndpoint(c.ILPEndpoint)
	return c, c.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}

	str("SERVICE_UID", &c.UID)
	str("PORT", &c.Port)
	str("ILP_ENDPOINT", &c.ILPEndpoint)
	str("FLEET_FILE", &c.FleetFile)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("WEBHOOK_SECRET", &c.WebhookSecret)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("OTEL_TRACES", &c.Tracing)
	str("PATH_KEYS", &c.PathKeys)
	str("ADMIN_AUTH", &c.AdminAuth)
	str("ADMIN_SECRET", &c.AdminSecret)
	num("RATE_BURST", &c.RateBurst)
	num("WEBHOOK_MAX_ATTEMPTS", &c.WebhookMaxAttempts)
	num("PATH_CACHE_SIZE", &c.PathCacheSize)
	num("MAX_EXPANSIONS", &c.MaxExpansions)

	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		c.DBMigrate = v != "false"
	}
	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("RATE_RPS: %v", err))
		} else {
			c.RateRPS = f
		}
	}
	if v, ok := lookup("FLEET_CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("FLEET_CACHE_TTL: %v", err))
		} else {
			c.FleetCacheTTL = d
		}
	}
	if v, ok := lookup("WEBHOOK_URLS"); ok && v != "" {
		c.WebhookURLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.WebhookURLs = append(c.WebhookURLs, u)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) Validate() error {
	if c.RateRPS < 0 || c.RateBurst < 0 {
		return fmt.Errorf("config: rate limits must be >= 0")
	}
	if c.MaxExpansions < 0 || c.PathCacheSize < 0 {
		return fmt.Errorf("config: maxExpansions and pathCacheSize must be >= 0")
	}
	if _, err := pathfind.ParseKeyMode(c.PathKeys); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Tracing {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("config: unknown tracing exporter %q", c.Tracing)
	}
	switch strings.ToLower(c.AdminAuth) {
	case "", "none":
	case "token", "hmac":
		if c.AdminSecret == "" {
			return fmt.Errorf("config: adminAuth %s needs adminSecret", c.AdminAuth)
		}
	default:
		return fmt.Errorf("config: unknown adminAuth %q", c.AdminAuth)
	}
	return nil
}

// PathOptions builds pathfinder options from the config.
func (c Config) PathOptions() pathfind.Options {
	keys, _ := pathfind.ParseKeyMode(c.PathKeys)
	return pathfind.Options{Keys: keys, MaxExpansions: c.MaxExpansions}
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

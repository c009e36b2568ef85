// Package config loads RiskMesh's tunables from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-derived setting the engine, sink, cache
// and rate limiter need at startup.
type Config struct {
	// HTTP server
	APIPort int `env:"API_PORT" envDefault:"8080"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"riskmesh"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"riskmesh"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"riskmesh"`

	// Cache
	CacheMode string `env:"CACHE_MODE" envDefault:"memory"` // memory | redis
	RedisURL  string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// Dead-letter transport
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Principal resolution
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTExpiry string `env:"JWT_EXPIRY" envDefault:"24h"`

	// Rate limiting
	RateLimitDefaultRPS   int    `env:"RATE_LIMIT_DEFAULT_RPS" envDefault:"50"`
	RateLimitKeys         string `env:"RATE_LIMIT_KEYS"` // "key1:rps1,key2:rps2"
	RateLimitWindowSecs   float64 `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"1"`
	DenyUnknownPrincipal  bool   `env:"DENY_UNKNOWN_PRINCIPAL" envDefault:"false"`

	// Propagation
	PropagationAlpha     float64 `env:"PROPAGATION_ALPHA" envDefault:"0.5"`
	PropagationMaxDepth  int     `env:"PROPAGATION_MAX_DEPTH" envDefault:"2"`
	PropagationThreshold float64 `env:"PROPAGATION_THRESHOLD" envDefault:"0.1"`

	// Decay
	DecayFactor float64 `env:"DECAY_FACTOR" envDefault:"0.995"`

	// Clustering
	RingMinSize   int     `env:"RING_MIN_SIZE" envDefault:"3"`
	DenseMinRatio float64 `env:"DENSE_MIN_RATIO" envDefault:"1.5"`
	DenseMinNodes int     `env:"DENSE_MIN_NODES" envDefault:"4"`
	StarMinDegree int     `env:"STAR_MIN_DEGREE" envDefault:"10"`

	// Deadlines
	EventDeadlineMS      int `env:"EVENT_DEADLINE_MS" envDefault:"200"`
	CacheSubdeadlineMS   int `env:"CACHE_SUBDEADLINE_MS" envDefault:"20"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// Load parses environment variables into a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects insecure configuration outside local dev.
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

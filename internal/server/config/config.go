// Package config handles configuration for the server component: defaults,
// environment variables, an optional JSON file and command-line flags, in
// that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muneebhashone/gqlauth/internal/server/authctx"
)

// Session store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
)

// ErrMissing is wrapped by the error Validate returns when required keys
// are unset.
var ErrMissing = errors.New("missing required configuration")

// Config holds runtime settings for the server.
//
// DatabaseURL, Port, SessionSecret, JWTSecret, GoogleClientID and
// GoogleClientSecret have no defaults: the server refuses to start without
// them.
//
// AuthPolicy defaults to "independent": a valid bearer token authenticates a
// request on its own, so a token issued before logout keeps working until it
// expires even though the session is gone. Set AUTH_POLICY=coupled to honour
// tokens only while the session that issued them is still authenticated;
// logout then revokes both at once.
//
// OTELEndpoint, when set, exports traces over OTLP/HTTP to that URL. Tracing
// is off when it is empty.
type Config struct {
	DatabaseURL         string        `env:"DATABASE_URL"`
	Port                string        `env:"PORT"`
	SessionSecret       string        `env:"SESSION_SECRET"`
	JWTSecret           string        `env:"JWT_SECRET"`
	GoogleClientID      string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL   string        `env:"GOOGLE_CALLBACK_URL"`
	GoogleIssuer        string        `env:"GOOGLE_ISSUER"`
	SessionStore        string        `env:"SESSION_STORE"`
	RedisAddr           string        `env:"REDIS_ADDR"`
	MongoURL            string        `env:"MONGO_URL"`
	SessionMaxAge       time.Duration `env:"SESSION_MAX_AGE"`
	TokenTTL            time.Duration `env:"TOKEN_TTL"`
	AuthPolicy          string        `env:"AUTH_POLICY"`
	GRPCAddr            string        `env:"GRPC_ADDR"`
	LogLevel            string        `env:"LOG_LEVEL"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL"`
	OTELEndpoint        string        `env:"OTEL_ENDPOINT"`
}

// LoadDefaults populates the optional settings.
func (c *Config) LoadDefaults() {
	c.GoogleIssuer = "https://accounts.google.com"
	c.SessionStore = StorePostgres
	c.SessionMaxAge = 24 * time.Hour
	c.TokenTTL = 24 * time.Hour
	c.AuthPolicy = string(authctx.PolicyIndependent)
	c.GRPCAddr = ":50051"
	c.LogLevel = "info"
	c.SweepInterval = 15 * time.Minute
}

// HTTPAddr is the listen address derived from Port.
func (c *Config) HTTPAddr() string {
	return ":" + c.Port
}

// Validate checks required keys and value ranges. Every missing key is
// reported in one error.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		key, value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"PORT", c.Port},
		{"SESSION_SECRET", c.SessionSecret},
		{"JWT_SECRET", c.JWTSecret},
		{"GOOGLE_CLIENT_ID", c.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", c.GoogleClientSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	switch c.SessionStore {
	case StoreRedis:
		if c.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	case StoreMongo:
		if c.MongoURL == "" {
			missing = append(missing, "MONGO_URL")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}

	switch c.SessionStore {
	case StorePostgres, StoreRedis, StoreMongo:
	default:
		return fmt.Errorf("unknown session store %q", c.SessionStore)
	}
	if _, err := authctx.ParsePolicy(c.AuthPolicy); err != nil {
		return err
	}
	if c.SessionMaxAge <= 0 || c.TokenTTL <= 0 || c.SweepInterval <= 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

// LoadConfig builds a Config from defaults, the environment, an optional
// JSON file (-c / -config) and command-line flags, then validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJSON(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if cfg.GoogleCallbackURL == "" && cfg.Port != "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%s/auth/google/callback", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

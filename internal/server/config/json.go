package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/muneebhashone/gqlauth/internal/flagx"
	"github.com/muneebhashone/gqlauth/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept "24h"
// style strings or integer nanoseconds. Absent keys leave the current value.
type JsonConfig struct {
	DatabaseURL         *string         `json:"database_url"`
	Port                *string         `json:"port"`
	SessionSecret       *string         `json:"session_secret"`
	JWTSecret           *string         `json:"jwt_secret"`
	GoogleClientID      *string         `json:"google_client_id"`
	GoogleClientSecret  *string         `json:"google_client_secret"`
	GoogleCallbackURL   *string         `json:"google_callback_url"`
	GoogleIssuer        *string         `json:"google_issuer"`
	SessionStore        *string         `json:"session_store"`
	RedisAddr           *string         `json:"redis_addr"`
	MongoURL            *string         `json:"mongo_url"`
	SessionMaxAge       *timex.Duration `json:"session_max_age"`
	TokenTTL            *timex.Duration `json:"token_ttl"`
	AuthPolicy          *string         `json:"auth_policy"`
	GRPCAddr            *string         `json:"grpc_addr"`
	LogLevel            *string         `json:"log_level"`
	SessionCookieSecure *bool           `json:"session_cookie_secure"`
	SweepInterval       *timex.Duration `json:"sweep_interval"`
	OTELEndpoint        *string         `json:"otel_endpoint"`
}

// parseJSON loads the file named by -c / -config, if any.
func parseJSON(cfg *Config) error {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var c JsonConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.DatabaseURL, c.DatabaseURL)
	setString(&cfg.Port, c.Port)
	setString(&cfg.SessionSecret, c.SessionSecret)
	setString(&cfg.JWTSecret, c.JWTSecret)
	setString(&cfg.GoogleClientID, c.GoogleClientID)
	setString(&cfg.GoogleClientSecret, c.GoogleClientSecret)
	setString(&cfg.GoogleCallbackURL, c.GoogleCallbackURL)
	setString(&cfg.GoogleIssuer, c.GoogleIssuer)
	setString(&cfg.SessionStore, c.SessionStore)
	setString(&cfg.RedisAddr, c.RedisAddr)
	setString(&cfg.MongoURL, c.MongoURL)
	setString(&cfg.AuthPolicy, c.AuthPolicy)
	setString(&cfg.GRPCAddr, c.GRPCAddr)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.OTELEndpoint, c.OTELEndpoint)
	if c.SessionCookieSecure != nil {
		cfg.SessionCookieSecure = *c.SessionCookieSecure
	}
	if c.SessionMaxAge != nil {
		cfg.SessionMaxAge = c.SessionMaxAge.Duration
	}
	if c.TokenTTL != nil {
		cfg.TokenTTL = c.TokenTTL.Duration
	}
	if c.SweepInterval != nil {
		cfg.SweepInterval = c.SweepInterval.Duration
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

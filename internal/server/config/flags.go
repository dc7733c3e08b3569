package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/muneebhashone/gqlauth/internal/flagx"
)

// parseFlags overlays command-line flags.
//
//	-p string   HTTP port
//	-d string   PostgreSQL URL
//	-g string   gRPC bind address
//	-s string   session store (postgres, redis, mongo)
//	-a string   auth policy (independent, coupled)
//	-l string   log level
//	-secure-cookies   mark cookies HTTPS-only
//
// Only these flags are taken from os.Args; -c / -config are read by parseJSON.
func parseFlags(cfg *Config) error {
	args := flagx.Set{
		Values: []string{"p", "d", "g", "s", "a", "l"},
		Bools:  []string{"secure-cookies"},
	}.Filter(os.Args[1:])

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Port, "p", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "database URL")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC bind address")
	fs.StringVar(&cfg.SessionStore, "s", cfg.SessionStore, "session store: postgres, redis or mongo")
	fs.StringVar(&cfg.AuthPolicy, "a", cfg.AuthPolicy, "auth policy: independent or coupled")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.SessionCookieSecure, "secure-cookies", cfg.SessionCookieSecure, "mark cookies HTTPS-only")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

// Package httpapi wires the HTTP surface: login, logout, Google sign-in, the
// GraphQL endpoint (HTTP and WebSocket on the same path), health and metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/sessions"
	"github.com/muneebhashone/gqlauth/internal/server/strategies"
	"github.com/muneebhashone/gqlauth/internal/server/subscriptions"
)

// TokenSigner issues bearer tokens.
type TokenSigner interface {
	Sign(identity models.Identity) (string, error)
}

// LoginRecorder counts login attempts.
type LoginRecorder interface {
	Login(strategy, result string)
}

// Deps are the collaborators of the router. All are built once at startup.
type Deps struct {
	Sessions      *sessions.Manager
	Tokens        TokenSigner
	Strategies    *strategies.Registry
	GraphQL       http.Handler
	Subscriptions http.Handler
	Metrics       http.Handler
	Logins        LoginRecorder
	Logger        logging.Logger

	// TokenMaxAge is the lifetime of the token cookie.
	TokenMaxAge time.Duration
	// SecureCookies marks every cookie set here as HTTPS-only.
	SecureCookies bool
}

// NewRouter builds the chi router.
func NewRouter(d Deps) http.Handler {
	h := &handlers{Deps: d, logger: d.Logger.With("module", "http")}
	if h.TokenMaxAge <= 0 {
		h.TokenMaxAge = 24 * time.Hour
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// logout must succeed even when the store is down
	r.Get("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.Middleware)

		r.Post("/login", h.login)
		r.Get("/auth/sign-in-with-google", h.googleBegin)
		r.Get("/auth/google/callback", h.googleCallback)
		r.HandleFunc("/graphql", h.graphql)
	})

	return r
}

type handlers struct {
	Deps
	logger logging.Logger
}

// requestLogger attaches request attributes to the context and writes one
// access log line per request.
func (h *handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestData(r.Context(), &logging.RequestData{
			RequestID:  middleware.GetReqID(r.Context()),
			Method:     r.Method,
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
		})
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		h.logger.Info(ctx, "request served",
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func (h *handlers) graphql(w http.ResponseWriter, r *http.Request) {
	if subscriptions.IsUpgrade(r) {
		if h.Subscriptions == nil {
			http.Error(w, "subscriptions are not enabled", http.StatusNotImplemented)
			return
		}
		h.Subscriptions.ServeHTTP(w, r)
		return
	}
	h.GraphQL.ServeHTTP(w, r)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Sessions.Ping(ctx); err != nil {
		h.logger.Warn(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

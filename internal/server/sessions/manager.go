// Package sessions implements the server-side session layer: opaque session
// ids carried in a signed cookie, pluggable record stores, and the middleware
// that restores the session state once per request.
package sessions

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

const (
	// CookieName is the name of the session id cookie.
	CookieName = "sid"

	// DefaultMaxAge is the lifetime of a session and of its cookie.
	DefaultMaxAge = 24 * time.Hour

	sidBytes = 32
)

// Options configure a Manager.
type Options struct {
	// Secret signs the session cookie. Required.
	Secret []byte
	// MaxAge defaults to DefaultMaxAge.
	MaxAge time.Duration
	// Secure marks the cookie as HTTPS-only.
	Secure bool
}

// Manager creates, resolves and destroys sessions and owns the session cookie.
type Manager struct {
	store  Store
	secret []byte
	maxAge time.Duration
	secure bool
	logger logging.Logger
	now    func() time.Time
}

func NewManager(store Store, opts Options, logger logging.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Manager{
		store:  store,
		secret: opts.Secret,
		maxAge: opts.MaxAge,
		secure: opts.Secure,
		logger: logger.With("module", "sessions"),
		now:    time.Now,
	}, nil
}

// MaxAge returns the configured session lifetime.
func (m *Manager) MaxAge() time.Duration { return m.maxAge }

// CreateSession stores a new session bound to identity and returns its id.
func (m *Manager) CreateSession(ctx context.Context, identity models.Identity) (string, error) {
	sid, err := common.MakeRandHexString(sidBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	ident := identity
	rec := &models.Session{
		ID:        sid,
		Identity:  &ident,
		ExpiresAt: m.now().Add(m.maxAge),
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return "", err
	}
	m.logger.Debug(ctx, "session created", "sid", common.Fingerprint(sid), "user_id", identity.ID)
	return sid, nil
}

// ResolveSession returns the identity bound to sid. Unknown and expired
// sessions resolve to nil without error; expired records are removed.
func (m *Manager) ResolveSession(ctx context.Context, sid string) (*models.Identity, error) {
	if sid == "" {
		return nil, nil
	}
	rec, err := m.store.Find(ctx, sid)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rec.Expired(m.now()) {
		if err := m.store.Delete(ctx, sid); err != nil {
			m.logger.Warn(ctx, "expired session not removed", "sid", common.Fingerprint(sid), "error", err)
		}
		return nil, nil
	}
	return rec.Identity, nil
}

// DestroySession deletes the session. Unknown ids are not an error.
func (m *Manager) DestroySession(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return m.store.Delete(ctx, sid)
}

// Sweep purges expired records when the store needs it. Stores with native
// expiry report zero.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	sw, ok := m.store.(Sweeper)
	if !ok {
		return 0, nil
	}
	return sw.DeleteExpired(ctx, m.now())
}

// Ping checks the store when it supports health checks.
func (m *Manager) Ping(ctx context.Context) error {
	p, ok := m.store.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

func (m *Manager) sign(sid string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sid))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// EncodeCookieValue returns "<sid>.<signature>".
func (m *Manager) EncodeCookieValue(sid string) string {
	return sid + "." + m.sign(sid)
}

// DecodeCookieValue verifies a cookie value and returns the session id.
func (m *Manager) DecodeCookieValue(v string) (string, bool) {
	i := strings.LastIndexByte(v, '.')
	if i <= 0 || i == len(v)-1 {
		return "", false
	}
	sid, sig := v[:i], v[i+1:]
	if !hmac.Equal([]byte(sig), []byte(m.sign(sid))) {
		return "", false
	}
	return sid, true
}

// SessionID returns the verified session id carried by r, if any.
// A tampered cookie is treated as absent.
func (m *Manager) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return m.DecodeCookieValue(c.Value)
}

// SetCookie writes the signed session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.EncodeCookieValue(sid),
		Path:     "/",
		MaxAge:   int(m.maxAge / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the client.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Load resolves the session state carried by r without touching its context.
func (m *Manager) Load(r *http.Request) (State, error) {
	sid, ok := m.SessionID(r)
	if !ok {
		return State{}, nil
	}
	ident, err := m.ResolveSession(r.Context(), sid)
	if err != nil {
		return State{}, err
	}
	return State{SessionID: sid, Identity: ident, Authenticated: ident != nil}, nil
}

// Restore loads the session state and returns r with the state in its context.
func (m *Manager) Restore(r *http.Request) (*http.Request, error) {
	st, err := m.Load(r)
	if err != nil {
		return r, err
	}
	return r.WithContext(WithState(r.Context(), st)), nil
}

// Middleware restores the session once per request. A store outage fails
// the request with 503 rather than treating the caller as anonymous.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r2, err := m.Restore(r)
		if err != nil {
			m.logger.Error(r.Context(), "session restore failed", "error", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r2)
	})
}

package subscriptions

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/authctx"
	"github.com/muneebhashone/gqlauth/internal/server/sessions"
)

const defaultInitTimeout = 10 * time.Second

// SessionLoader reads the session state of a request from the store.
type SessionLoader interface {
	Load(r *http.Request) (sessions.State, error)
}

// ContextResolver resolves an execution context with an explicit token.
type ContextResolver interface {
	ResolveWithToken(r *http.Request, token string) *authctx.ExecutionContext
}

// Gauge tracks live subscriptions.
type Gauge interface {
	SubscriptionStarted()
	SubscriptionEnded()
}

// Bridge upgrades /graphql requests and runs subscriptions on the socket.
type Bridge struct {
	schema      *graphql.Schema
	sessions    SessionLoader
	resolver    ContextResolver
	gauge       Gauge
	logger      logging.Logger
	upgrader    websocket.Upgrader
	initTimeout time.Duration
}

// Option customises a Bridge.
type Option func(*Bridge)

// WithGauge attaches a live-subscription gauge.
func WithGauge(g Gauge) Option {
	return func(b *Bridge) { b.gauge = g }
}

// WithInitTimeout bounds the wait for connection_init.
func WithInitTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.initTimeout = d }
}

func NewBridge(schema *graphql.Schema, loader SessionLoader, resolver ContextResolver, logger logging.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		schema:   schema,
		sessions: loader,
		resolver: resolver,
		logger:   logger.With("module", "subscriptions"),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Protocol},
		},
		initTimeout: defaultInitTimeout,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// IsUpgrade reports whether r asks for a WebSocket.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// ServeHTTP upgrades the connection and serves it until it closes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	c := newConnection(b, ws, r)
	if ws.Subprotocol() != Protocol {
		c.close(closeBadProtocol, "Subprotocol not acceptable")
		_ = ws.Close()
		return
	}
	c.serve()
}

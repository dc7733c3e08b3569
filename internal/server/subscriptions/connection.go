package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/authctx"
	"github.com/muneebhashone/gqlauth/internal/server/sessions"
)

const writeWait = 10 * time.Second

type connection struct {
	b       *Bridge
	ws      *websocket.Conn
	upgrade *http.Request
	logger  logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	// read loop only
	initialised bool
	acked       bool
	initToken   string

	mu   sync.Mutex
	subs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

func newConnection(b *Bridge, ws *websocket.Conn, r *http.Request) *connection {
	ctx, cancel := context.WithCancel(r.Context())
	return &connection{
		b:       b,
		ws:      ws,
		upgrade: r,
		logger:  b.logger.With("conn_id", uuid.NewString()),
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[string]context.CancelFunc),
	}
}

func (c *connection) serve() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		_ = c.ws.Close()
	}()

	if c.b.initTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.b.initTimeout))
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var ne net.Error
			if !c.acked && errors.As(err, &ne) && ne.Timeout() {
				c.close(closeInitTimeout, "Connection initialisation timeout")
				return
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Warn(c.ctx, "websocket read error", "error", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.close(closeBadRequest, "Invalid message received")
			return
		}
		if !c.handle(msg) {
			return
		}
	}
}

// handle processes one message and reports whether the socket stays open.
func (c *connection) handle(msg message) bool {
	switch msg.Type {
	case msgConnectionInit:
		if c.initialised {
			c.close(closeTooManyInits, "Too many initialisation requests")
			return false
		}
		c.initialised = true
		if len(msg.Payload) > 0 && string(msg.Payload) != "null" {
			var p initPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				c.close(closeBadRequest, "Invalid connection_init payload")
				return false
			}
			c.initToken = authctx.StripBearer(p.Authorization)
		}
		c.acked = true
		_ = c.ws.SetReadDeadline(time.Time{})
		return c.write(message{Type: msgConnectionAck}) == nil

	case msgPing:
		return c.write(message{Type: msgPong}) == nil

	case msgPong:
		return true

	case msgSubscribe:
		if !c.acked {
			c.close(closeUnauthorized, "Unauthorized")
			return false
		}
		if msg.ID == "" {
			c.close(closeBadRequest, "Subscribe message requires an id")
			return false
		}
		var p subscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.close(closeBadRequest, "Invalid subscribe payload")
			return false
		}
		c.mu.Lock()
		_, dup := c.subs[msg.ID]
		c.mu.Unlock()
		if dup {
			c.close(closeDuplicateID, fmt.Sprintf("Subscriber for %s already exists", msg.ID))
			return false
		}
		c.subscribe(msg.ID, p)
		return true

	case msgComplete:
		c.stop(msg.ID)
		return true

	default:
		c.close(closeBadRequest, "Invalid message received")
		return false
	}
}

// token picks the per-message token, then the connection_init token, then
// whatever the upgrade request carried.
func (c *connection) token(p subscribePayload) string {
	if t := authctx.StripBearer(p.Extensions.Authorization); t != "" {
		return t
	}
	if c.initToken != "" {
		return c.initToken
	}
	return authctx.BearerToken(c.upgrade)
}

func (c *connection) subscribe(id string, p subscribePayload) {
	st, err := c.b.sessions.Load(c.upgrade)
	if err != nil {
		c.logger.Error(c.ctx, "session restore failed", "id", id, "error", err)
		c.sendErrors(id, []errorMessage{{Message: "session store unavailable"}})
		return
	}

	req := c.upgrade.WithContext(sessions.WithState(c.ctx, st))
	ec := c.b.resolver.ResolveWithToken(req, c.token(p))

	if errs := c.b.schema.Validate(p.Query); len(errs) > 0 {
		out := make([]errorMessage, 0, len(errs))
		for _, e := range errs {
			out = append(out, errorMessage{Message: e.Message})
		}
		c.sendErrors(id, out)
		return
	}

	ctx, cancel := context.WithCancel(authctx.With(logging.WithAuthMode(c.ctx, string(ec.Mode)), ec))
	events, err := c.b.schema.Subscribe(ctx, p.Query, p.OperationName, p.Variables)
	if err != nil {
		cancel()
		c.sendErrors(id, []errorMessage{{Message: err.Error()}})
		return
	}

	c.mu.Lock()
	c.subs[id] = cancel
	c.mu.Unlock()
	if c.b.gauge != nil {
		c.b.gauge.SubscriptionStarted()
	}
	c.logger.Debug(ctx, "subscription started", "id", id, "auth.mode", string(ec.Mode))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if c.b.gauge != nil {
				c.b.gauge.SubscriptionEnded()
			}
		}()
		for ev := range events {
			resp, ok := ev.(*graphql.Response)
			if !ok {
				continue
			}
			payload, err := json.Marshal(resp)
			if err != nil {
				c.logger.Error(ctx, "encode subscription event", "id", id, "error", err)
				continue
			}
			if err := c.write(message{ID: id, Type: msgNext, Payload: payload}); err != nil {
				cancel()
				break
			}
		}
		// complete from the client needs no echo
		if c.remove(id) && c.ctx.Err() == nil {
			_ = c.write(message{ID: id, Type: msgComplete})
		}
		cancel()
	}()
}

// remove drops id and reports whether it was still registered.
func (c *connection) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[id]; !ok {
		return false
	}
	delete(c.subs, id)
	return true
}

func (c *connection) stop(id string) {
	c.mu.Lock()
	cancel, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *connection) sendErrors(id string, errs []errorMessage) {
	payload, err := json.Marshal(errs)
	if err != nil {
		return
	}
	_ = c.write(message{ID: id, Type: msgError, Payload: payload})
}

func (c *connection) write(m message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(m)
}

func (c *connection) close(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
}

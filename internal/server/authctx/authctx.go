// Package authctx builds the per-operation execution context: it reconciles
// the restored session with the bearer token and decides who the caller is.
package authctx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// TokenCookieName is the cookie that carries the bearer token.
const TokenCookieName = "token"

const bearerPrefix = "Bearer "

// Mode says which channel produced the user of an ExecutionContext.
type Mode string

const (
	ModeBearer    Mode = "bearer"
	ModeSession   Mode = "session"
	ModeAnonymous Mode = "anonymous"
)

// Policy selects how the session and the token are combined.
type Policy string

const (
	// PolicyIndependent accepts either channel on its own: a valid token
	// wins, else an authenticated session, else anonymous.
	PolicyIndependent Policy = "independent"
	// PolicyCoupled only decodes the token when the session is
	// authenticated, and the user always comes from the token.
	PolicyCoupled Policy = "coupled"
)

// ParsePolicy accepts "independent" and "coupled"; empty means independent.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyIndependent, nil
	case PolicyIndependent, PolicyCoupled:
		return p, nil
	default:
		return "", fmt.Errorf("unknown auth policy %q", s)
	}
}

// ExecutionContext is built fresh for every GraphQL operation.
type ExecutionContext struct {
	Request *http.Request
	User    *models.Identity
	Mode    Mode
}

// Authenticated reports whether a user was resolved.
func (ec *ExecutionContext) Authenticated() bool {
	return ec != nil && ec.User != nil
}

type ctxKey struct{}

func With(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ec)
}

// From returns the execution context stored in ctx, or nil.
func From(ctx context.Context) *ExecutionContext {
	ec, _ := ctx.Value(ctxKey{}).(*ExecutionContext)
	return ec
}

// BearerToken extracts the token from the token cookie, falling back to the
// Authorization header. Only a literal "Bearer " prefix is stripped.
func BearerToken(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return StripBearer(r.Header.Get("Authorization"))
}

// StripBearer removes a leading "Bearer " from v.
func StripBearer(v string) string {
	return strings.TrimPrefix(v, bearerPrefix)
}

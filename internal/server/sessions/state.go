package sessions

import (
	"context"

	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// State is the session view of one request.
type State struct {
	SessionID     string
	Identity      *models.Identity
	Authenticated bool
}

type stateKey struct{}

func WithState(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// FromContext returns the restored state and whether restore ran.
func FromContext(ctx context.Context) (State, bool) {
	st, ok := ctx.Value(stateKey{}).(State)
	return st, ok
}

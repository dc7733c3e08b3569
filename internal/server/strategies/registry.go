// Package strategies holds the named login strategies and the registry the
// HTTP layer dispatches through.
package strategies

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// Strategy turns an inbound request into an identity or a failure.
type Strategy interface {
	Authenticate(ctx context.Context, r *http.Request) (models.Identity, error)
}

// Initiator is implemented by strategies that start by redirecting the
// browser to an external provider.
type Initiator interface {
	Begin(w http.ResponseWriter, r *http.Request)
}

// Finisher is implemented by strategies that leave per-flow state on the
// client which must be cleared once the flow ends.
type Finisher interface {
	Finish(w http.ResponseWriter)
}

// Registry maps strategy names to strategies. It is filled once at startup
// and read-only afterwards.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds s under name. Names are unique.
func (r *Registry) Register(name string, s Strategy) error {
	if name == "" || s == nil {
		return fmt.Errorf("strategy name and implementation are required")
	}
	if _, dup := r.strategies[name]; dup {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.strategies[name] = s
	return nil
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownStrategy, name)
	}
	return s, nil
}

// Authenticate runs the named strategy against req.
func (r *Registry) Authenticate(ctx context.Context, name string, req *http.Request) (models.Identity, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return models.Identity{}, err
	}
	return s.Authenticate(ctx, req)
}

// Names lists registered strategy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

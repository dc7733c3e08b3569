package graph

import (
	"context"
	"errors"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/authctx"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// Registrar creates local users.
type Registrar interface {
	Register(ctx context.Context, email, password string) (models.Identity, error)
}

// Resolver is the root resolver.
type Resolver struct {
	users  Registrar
	pubsub *PubSub
	logger logging.Logger
}

func NewResolver(users Registrar, pubsub *PubSub, logger logging.Logger) *Resolver {
	return &Resolver{users: users, pubsub: pubsub, logger: logger.With("module", "graph")}
}

func (r *Resolver) Hello() string { return "world" }

// Me returns the caller, or null when the operation is anonymous.
func (r *Resolver) Me(ctx context.Context) *UserResolver {
	ec := authctx.From(ctx)
	if !ec.Authenticated() {
		return nil
	}
	return &UserResolver{id: *ec.User}
}

type registerArgs struct {
	Email    string
	Password string
}

func (r *Resolver) Register(ctx context.Context, args registerArgs) (*UserResolver, error) {
	id, err := r.users.Register(ctx, args.Email, args.Password)
	switch {
	case err == nil:
		return &UserResolver{id: id}, nil
	case errors.Is(err, common.ErrorAlreadyExists):
		return nil, errors.New("email already registered")
	case errors.Is(err, common.ErrorValidation):
		return nil, errors.New("email and password are required")
	default:
		r.logger.Error(ctx, "register failed", "error", err)
		return nil, errors.New("internal error")
	}
}

// errAuthRequired is returned to anonymous subscribers.
var errAuthRequired = errors.New("authentication required")

// UserRegistered streams users as they register until ctx ends. Anonymous
// callers are refused so registrations cannot be enumerated.
func (r *Resolver) UserRegistered(ctx context.Context) (<-chan *UserResolver, error) {
	if !authctx.From(ctx).Authenticated() {
		return nil, errAuthRequired
	}
	src := r.pubsub.Subscribe(ctx)
	out := make(chan *UserResolver)
	go func() {
		defer close(out)
		for id := range src {
			select {
			case out <- &UserResolver{id: id}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// UserResolver resolves the User type.
type UserResolver struct {
	id models.Identity
}

func (u *UserResolver) ID() graphql.ID { return graphql.ID(u.id.ID) }
func (u *UserResolver) Email() string  { return u.id.Email }

package authctx

import (
	"net/http"

	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/sessions"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/muneebhashone/gqlauth/internal/server/authctx"

// TokenVerifier decodes a bearer token; nil means invalid.
type TokenVerifier interface {
	Verify(token string) *models.Identity
}

// Recorder observes every resolution.
type Recorder interface {
	ContextResolved(mode string)
}

// Resolver turns a request into an ExecutionContext.
type Resolver struct {
	tokens   TokenVerifier
	policy   Policy
	logger   logging.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Resolver) { r.tracer = tp.Tracer(tracerName) }
}

func NewResolver(tokens TokenVerifier, policy Policy, logger logging.Logger, opts ...Option) *Resolver {
	if policy == "" {
		policy = PolicyIndependent
	}
	r := &Resolver{
		tokens: tokens,
		policy: policy,
		logger: logger.With("module", "authctx"),
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Policy returns the configured policy.
func (r *Resolver) Policy() Policy { return r.policy }

// Resolve reads the token from the request itself.
func (r *Resolver) Resolve(req *http.Request) *ExecutionContext {
	return r.ResolveWithToken(req, BearerToken(req))
}

// ResolveWithToken resolves using an explicitly supplied token. The session
// state must already have been restored into req's context. It never
// panics: an internal failure yields an anonymous context.
func (r *Resolver) ResolveWithToken(req *http.Request, token string) (ec *ExecutionContext) {
	ctx, span := r.tracer.Start(req.Context(), "authctx.Resolve",
		trace.WithAttributes(attribute.String("auth.policy", string(r.policy))))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(ctx, "context resolution panicked", "panic", p)
			ec = &ExecutionContext{Request: req, Mode: ModeAnonymous}
		}
		span.SetAttributes(attribute.String("auth.mode", string(ec.Mode)))
		if r.recorder != nil {
			r.recorder.ContextResolved(string(ec.Mode))
		}
		r.logger.Debug(ctx, "context resolved", "auth.mode", string(ec.Mode), "policy", string(r.policy))
	}()

	st, _ := sessions.FromContext(req.Context())

	switch r.policy {
	case PolicyCoupled:
		if !st.Authenticated {
			return &ExecutionContext{Request: req, Mode: ModeAnonymous}
		}
		if u := r.verify(token); u != nil {
			return &ExecutionContext{Request: req, User: u, Mode: ModeBearer}
		}
		return &ExecutionContext{Request: req, Mode: ModeAnonymous}
	default:
		if u := r.verify(token); u != nil {
			return &ExecutionContext{Request: req, User: u, Mode: ModeBearer}
		}
		if st.Authenticated && st.Identity != nil {
			u := *st.Identity
			return &ExecutionContext{Request: req, User: &u, Mode: ModeSession}
		}
		return &ExecutionContext{Request: req, Mode: ModeAnonymous}
	}
}

func (r *Resolver) verify(token string) *models.Identity {
	if token == "" || r.tokens == nil {
		return nil
	}
	return r.tokens.Verify(token)
}

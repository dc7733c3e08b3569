package authctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/auth"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	alice = models.Identity{ID: "u1", Email: "a@x.com"}
	bob   = models.Identity{ID: "u2", Email: "b@x.com"}
)

type countingRecorder struct{ modes []string }

func (c *countingRecorder) ContextResolved(mode string) { c.modes = append(c.modes, mode) }

type panickingVerifier struct{}

func (panickingVerifier) Verify(string) *models.Identity { panic("decoder blew up") }

func newCodec() *auth.Codec { return auth.NewCodec([]byte("jwt-secret"), time.Hour) }

func signFor(t *testing.T, c *auth.Codec, id models.Identity) string {
	t.Helper()
	tok, err := c.Sign(id)
	require.NoError(t, err)
	return tok
}

// request builds a request whose context carries a restored session state.
func request(st *sessions.State, header string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	if st != nil {
		r = r.WithContext(sessions.WithState(r.Context(), *st))
	}
	return r
}

func authed(id models.Identity) *sessions.State {
	return &sessions.State{SessionID: "sid", Identity: &id, Authenticated: true}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", BearerToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", BearerToken(r))

	r.Header.Set("Authorization", "abc")
	assert.Equal(t, "abc", BearerToken(r), "no prefix means the raw header")

	r.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "bearer abc", BearerToken(r), "only the literal prefix is stripped")

	r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", BearerToken(r), "cookie wins over header")
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyIndependent, "independent": PolicyIndependent, " Coupled ": PolicyCoupled} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("either")
	require.Error(t, err)
}

func TestResolve_Coupled(t *testing.T) {
	codec := newCodec()
	res := NewResolver(codec, PolicyCoupled, logging.Nop())
	tok := signFor(t, codec, alice)

	t.Run("session without token yields no user", func(t *testing.T) {
		ec := res.Resolve(request(authed(alice), ""))
		assert.Nil(t, ec.User)
		assert.Equal(t, ModeAnonymous, ec.Mode)
	})

	t.Run("token without session yields no user", func(t *testing.T) {
		ec := res.Resolve(request(&sessions.State{}, "Bearer "+tok))
		assert.Nil(t, ec.User)
	})

	t.Run("token without restored state yields no user", func(t *testing.T) {
		ec := res.Resolve(request(nil, "Bearer "+tok))
		assert.Nil(t, ec.User)
	})

	t.Run("session and matching token yield the token identity", func(t *testing.T) {
		ec := res.Resolve(request(authed(alice), "Bearer "+tok))
		require.NotNil(t, ec.User)
		assert.Equal(t, alice, *ec.User)
		assert.Equal(t, ModeBearer, ec.Mode)
	})

	t.Run("session with invalid token yields no user", func(t *testing.T) {
		ec := res.Resolve(request(authed(alice), "Bearer garbage"))
		assert.Nil(t, ec.User)
	})
}

func TestResolve_Independent(t *testing.T) {
	codec := newCodec()
	rec := &countingRecorder{}
	res := NewResolver(codec, PolicyIndependent, logging.Nop(), WithRecorder(rec))

	t.Run("session alone", func(t *testing.T) {
		ec := res.Resolve(request(authed(alice), ""))
		require.NotNil(t, ec.User)
		assert.Equal(t, alice, *ec.User)
		assert.Equal(t, ModeSession, ec.Mode)
	})

	t.Run("token alone", func(t *testing.T) {
		ec := res.Resolve(request(nil, "Bearer "+signFor(t, codec, bob)))
		require.NotNil(t, ec.User)
		assert.Equal(t, bob, *ec.User)
		assert.Equal(t, ModeBearer, ec.Mode)
	})

	t.Run("token takes priority over session", func(t *testing.T) {
		ec := res.Resolve(request(authed(alice), "Bearer "+signFor(t, codec, bob)))
		assert.Equal(t, bob, *ec.User)
		assert.Equal(t, ModeBearer, ec.Mode)
	})

	t.Run("invalid token falls back to session", func(t *testing.T) {
		ec := res.Resolve(request(authed(alice), "Bearer garbage"))
		assert.Equal(t, alice, *ec.User)
		assert.Equal(t, ModeSession, ec.Mode)
	})

	t.Run("nothing", func(t *testing.T) {
		ec := res.Resolve(request(nil, ""))
		assert.Nil(t, ec.User)
		assert.Equal(t, ModeAnonymous, ec.Mode)
		assert.False(t, ec.Authenticated())
	})

	assert.Equal(t, []string{"session", "bearer", "bearer", "session", "anonymous"}, rec.modes)
}

func TestResolveWithToken_OverridesRequest(t *testing.T) {
	codec := newCodec()
	res := NewResolver(codec, PolicyIndependent, logging.Nop())

	ec := res.ResolveWithToken(request(nil, "Bearer "+signFor(t, codec, alice)), signFor(t, codec, bob))
	assert.Equal(t, bob, *ec.User)
}

func TestResolve_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	codec := newCodec()
	res := NewResolver(codec, PolicyCoupled, logging.Nop(), WithTracerProvider(tp))
	res.Resolve(request(authed(alice), "Bearer "+signFor(t, codec, bob)))
	res.Resolve(request(nil, ""))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for i, want := range []string{"bearer", "anonymous"} {
		assert.Equal(t, "authctx.Resolve", spans[i].Name())
		assert.Contains(t, spans[i].Attributes(), attribute.String("auth.policy", "coupled"))
		assert.Contains(t, spans[i].Attributes(), attribute.String("auth.mode", want))
	}
}

func TestResolve_RecoversToAnonymous(t *testing.T) {
	rec := &countingRecorder{}
	res := NewResolver(panickingVerifier{}, PolicyIndependent, logging.Nop(), WithRecorder(rec))
	req := request(authed(alice), "Bearer x")

	var ec *ExecutionContext
	require.NotPanics(t, func() { ec = res.Resolve(req) })
	assert.Nil(t, ec.User)
	assert.Equal(t, ModeAnonymous, ec.Mode)
	assert.Same(t, req, ec.Request)
	assert.Equal(t, []string{"anonymous"}, rec.modes)
}

func TestContextRoundTrip(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, From(r.Context()))

	ec := &ExecutionContext{Request: r, User: &alice, Mode: ModeSession}
	assert.Same(t, ec, From(With(r.Context(), ec)))
}

package strategies

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeFetcher struct {
	profile services.OAuthProfile
	err     error
	gotTok  *oauth2.Token
}

func (f *fakeFetcher) FetchProfile(_ context.Context, tok *oauth2.Token) (services.OAuthProfile, error) {
	f.gotTok = tok
	return f.profile, f.err
}

type fakeOAuthVerifier struct{}

func (fakeOAuthVerifier) VerifyOAuth(_ context.Context, p services.OAuthProfile) (models.Identity, error) {
	if p.Email == "a@x.com" && p.EmailVerified {
		return models.Identity{ID: "u1", Email: p.Email}, nil
	}
	return models.Identity{}, common.ErrUserNotFound
}

// tokenServer answers the code exchange; code "bad" is rejected.
func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") == "bad" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-" + r.PostForm.Get("code"),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGoogle(t *testing.T, fetcher ProfileFetcher) *OAuthStrategy {
	srv := tokenServer(t)
	return NewOAuthStrategy(OAuthOptions{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURL:  "http://localhost:3000/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: srv.URL},
	}, fetcher, fakeOAuthVerifier{}, logging.Nop())
}

func callback(query url.Values, state string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query.Encode(), nil)
	if state != "" {
		r.AddCookie(&http.Cookie{Name: StateCookieName, Value: state})
	}
	return r
}

func TestOAuthBegin(t *testing.T) {
	s := newGoogle(t, &fakeFetcher{})
	rec := httptest.NewRecorder()
	s.Begin(rec, httptest.NewRequest(http.MethodGet, "/auth/sign-in-with-google", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", loc.Host)
	assert.Equal(t, "cid", loc.Query().Get("client_id"))
	assert.Equal(t, "code", loc.Query().Get("response_type"))
	scopes := strings.Fields(loc.Query().Get("scope"))
	assert.Contains(t, scopes, "profile")
	assert.Contains(t, scopes, "email")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, StateCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 600, cookies[0].MaxAge)
	assert.Equal(t, cookies[0].Value, loc.Query().Get("state"))
}

func TestOAuthCallback_Success(t *testing.T) {
	f := &fakeFetcher{profile: services.OAuthProfile{Subject: "g-1", Email: "a@x.com", EmailVerified: true}}
	s := newGoogle(t, f)

	got, err := s.Authenticate(context.Background(), callback(url.Values{"state": {"st"}, "code": {"c1"}}, "st"))
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: "u1", Email: "a@x.com"}, got)
	require.NotNil(t, f.gotTok)
	assert.Equal(t, "at-c1", f.gotTok.AccessToken)
}

func TestOAuthCallback_Failures(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		cookie  string
		fetcher *fakeFetcher
		wantErr error
	}{
		{"missing state cookie", url.Values{"state": {"st"}, "code": {"c"}}, "", &fakeFetcher{}, common.ErrOAuthState},
		{"state mismatch", url.Values{"state": {"other"}, "code": {"c"}}, "st", &fakeFetcher{}, common.ErrOAuthState},
		{"provider denied", url.Values{"state": {"st"}, "error": {"access_denied"}}, "st", &fakeFetcher{}, common.ErrInvalidCredentials},
		{"missing code", url.Values{"state": {"st"}}, "st", &fakeFetcher{}, common.ErrStrategyInput},
		{"code rejected", url.Values{"state": {"st"}, "code": {"bad"}}, "st", &fakeFetcher{}, common.ErrInvalidCredentials},
		{"unknown user", url.Values{"state": {"st"}, "code": {"c"}}, "st",
			&fakeFetcher{profile: services.OAuthProfile{Email: "b@x.com", EmailVerified: true}}, common.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newGoogle(t, tt.fetcher).Authenticate(context.Background(), callback(tt.query, tt.cookie))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOAuthCallback_FetchError(t *testing.T) {
	boom := errors.New("userinfo down")
	s := newGoogle(t, &fakeFetcher{err: boom})

	_, err := s.Authenticate(context.Background(), callback(url.Values{"state": {"st"}, "code": {"c"}}, "st"))
	require.ErrorIs(t, err, boom)
	assert.False(t, common.IsLoginFailure(err))
}

func TestOAuthFinish(t *testing.T) {
	rec := httptest.NewRecorder()
	newGoogle(t, &fakeFetcher{}).Finish(rec)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

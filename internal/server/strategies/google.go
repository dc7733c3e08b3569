package strategies

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/services"
	"golang.org/x/oauth2"
)

const (
	// GoogleName is the registry name of the Google sign-in strategy.
	GoogleName = "oauth:google"

	// StateCookieName carries the OAuth state between redirect and callback.
	StateCookieName = "oauth_state"

	stateTTL = 10 * time.Minute
)

// GoogleScopes are requested on every sign-in. The profile scope alone does
// not release the email, which is what users are looked up by.
var GoogleScopes = []string{oidc.ScopeOpenID, "profile", "email"}

// ProfileFetcher turns an exchanged token into a provider profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, tok *oauth2.Token) (services.OAuthProfile, error)
}

// OAuthVerifier maps a provider profile onto a local user.
type OAuthVerifier interface {
	VerifyOAuth(ctx context.Context, p services.OAuthProfile) (models.Identity, error)
}

// OAuthStrategy runs the authorization-code flow against one provider.
type OAuthStrategy struct {
	config   *oauth2.Config
	fetcher  ProfileFetcher
	verifier OAuthVerifier
	secure   bool
	logger   logging.Logger
}

// OAuthOptions configure an OAuthStrategy.
type OAuthOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	// SecureCookie marks the state cookie as HTTPS-only.
	SecureCookie bool
}

func NewOAuthStrategy(opts OAuthOptions, fetcher ProfileFetcher, verifier OAuthVerifier, logger logging.Logger) *OAuthStrategy {
	return &OAuthStrategy{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     opts.Endpoint,
			Scopes:       GoogleScopes,
		},
		fetcher:  fetcher,
		verifier: verifier,
		secure:   opts.SecureCookie,
		logger:   logger.With("module", "oauth"),
	}
}

// Begin stores a fresh state in a short-lived cookie and redirects to the
// provider's consent page.
func (s *OAuthStrategy) Begin(w http.ResponseWriter, r *http.Request) {
	state, err := common.MakeRandHexString(16)
	if err != nil {
		s.logger.Error(r.Context(), "oauth state generation failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.config.AuthCodeURL(state), http.StatusFound)
}

// Finish clears the state cookie.
func (s *OAuthStrategy) Finish(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Authenticate handles the provider callback.
func (s *OAuthStrategy) Authenticate(ctx context.Context, r *http.Request) (models.Identity, error) {
	q := r.URL.Query()
	c, err := r.Cookie(StateCookieName)
	if err != nil || c.Value == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(q.Get("state"))) != 1 {
		return models.Identity{}, common.ErrOAuthState
	}
	if e := q.Get("error"); e != "" {
		s.logger.Info(ctx, "provider denied sign-in", "reason", e)
		return models.Identity{}, fmt.Errorf("%w: provider error %s", common.ErrInvalidCredentials, e)
	}
	code := q.Get("code")
	if code == "" {
		return models.Identity{}, fmt.Errorf("%w: missing code", common.ErrStrategyInput)
	}

	tok, err := s.config.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			// rejected or replayed code
			return models.Identity{}, fmt.Errorf("%w: %w", common.ErrInvalidCredentials, err)
		}
		return models.Identity{}, fmt.Errorf("oauth exchange: %w", err)
	}

	profile, err := s.fetcher.FetchProfile(ctx, tok)
	if err != nil {
		return models.Identity{}, fmt.Errorf("oauth profile: %w", err)
	}
	return s.verifier.VerifyOAuth(ctx, profile)
}

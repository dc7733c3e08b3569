package strategies

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// LocalName is the registry name of the email/password strategy.
const LocalName = "local"

const maxCredentialBody = 1 << 20

// LocalVerifier checks an email/password pair.
type LocalVerifier interface {
	VerifyLocal(ctx context.Context, email, password string) (models.Identity, error)
}

// LocalStrategy authenticates with email and password taken from a
// form-encoded or JSON body.
type LocalStrategy struct {
	verifier LocalVerifier
}

func NewLocalStrategy(v LocalVerifier) *LocalStrategy {
	return &LocalStrategy{verifier: v}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *LocalStrategy) Authenticate(ctx context.Context, r *http.Request) (models.Identity, error) {
	creds, err := readCredentials(r)
	if err != nil {
		return models.Identity{}, err
	}
	if creds.Email == "" || creds.Password == "" {
		return models.Identity{}, common.ErrInvalidCredentials
	}
	return s.verifier.VerifyLocal(ctx, creds.Email, creds.Password)
}

func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxCredentialBody)
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			return c, fmt.Errorf("%w: %w", common.ErrStrategyInput, err)
		}
		return c, nil
	}
	if err := r.ParseForm(); err != nil {
		return c, fmt.Errorf("%w: %w", common.ErrStrategyInput, err)
	}
	c.Email = r.PostFormValue("email")
	c.Password = r.PostFormValue("password")
	return c, nil
}

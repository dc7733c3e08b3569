// Package services contains server-side business logic: credential
// verification for the login strategies and user registration.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/cryptox"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// UserFinder looks a stored user up by email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.StoredUser, error)
}

// OAuthProfile is the subset of an external provider profile used for lookup.
type OAuthProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// CredentialVerifier checks local credentials and external profiles against
// the user store. It only ever returns the public Identity of a user.
type CredentialVerifier struct {
	users  UserFinder
	logger logging.Logger
	params cryptox.Params

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialVerifier(users UserFinder, logger logging.Logger) *CredentialVerifier {
	return &CredentialVerifier{
		users:  users,
		logger: logger.With("module", "verifier"),
		params: cryptox.DefaultParams,
	}
}

// VerifyLocal checks an email/password pair. Unknown emails and wrong
// passwords both yield common.ErrInvalidCredentials.
func (v *CredentialVerifier) VerifyLocal(ctx context.Context, email, password string) (models.Identity, error) {
	user, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			v.burnCompare(password)
			v.logger.Debug(ctx, "local login for unknown email")
			return models.Identity{}, common.ErrInvalidCredentials
		}
		return models.Identity{}, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	ok, err := cryptox.ComparePassword(password, user.PasswordHash)
	if err != nil {
		// accounts created through OAuth carry no usable hash
		v.burnCompare(password)
		v.logger.Warn(ctx, "stored password hash unusable", "user_id", user.ID, "error", err)
		return models.Identity{}, common.ErrInvalidCredentials
	}
	if !ok {
		return models.Identity{}, common.ErrInvalidCredentials
	}
	return user.Identity(), nil
}

// VerifyOAuth maps a provider profile onto an existing user by verified email.
// Users are never created here.
func (v *CredentialVerifier) VerifyOAuth(ctx context.Context, p OAuthProfile) (models.Identity, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" || !p.EmailVerified {
		return models.Identity{}, common.ErrUserNotFound
	}

	user, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			v.logger.Info(ctx, "oauth profile has no matching user", "subject", p.Subject)
			return models.Identity{}, common.ErrUserNotFound
		}
		return models.Identity{}, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return user.Identity(), nil
}

// burnCompare spends the same work as a real comparison so response time
// does not reveal whether an email is registered.
func (v *CredentialVerifier) burnCompare(password string) {
	v.dummyOnce.Do(func() {
		h, err := cryptox.HashPasswordWithParams(string(common.GenerateRandByteArray(16)), v.params)
		if err == nil {
			v.dummyHash = h
		}
	})
	if v.dummyHash != "" {
		_, _ = cryptox.ComparePassword(password, v.dummyHash)
	}
}

// Package users declares the user persistence contract consumed by the auth
// layer and provides its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// Repository is the UserStore capability: lookup by email and creation.
// The auth layer never updates a stored user.
type Repository interface {
	// FindByEmail returns the user with the given email or common.ErrorNotFound.
	FindByEmail(ctx context.Context, email string) (*models.StoredUser, error)

	// Create inserts user and fills in its generated ID and CreatedAt.
	// A duplicate email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.StoredUser) (*models.StoredUser, error)
}

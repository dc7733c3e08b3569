package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/cryptox"
	"github.com/muneebhashone/gqlauth/internal/dbx"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/repositories/users"
)

// UserRepositories vends a users repository bound to a DBTX.
type UserRepositories interface {
	Users(db dbx.DBTX) users.Repository
}

// Publisher receives newly registered identities.
type Publisher interface {
	Publish(models.Identity)
}

// UserService registers new local users.
type UserService struct {
	db        *sql.DB
	repos     UserRepositories
	publisher Publisher
	logger    logging.Logger
	params    cryptox.Params
}

func NewUserService(db *sql.DB, repos UserRepositories, publisher Publisher, logger logging.Logger) *UserService {
	return &UserService{
		db:        db,
		repos:     repos,
		publisher: publisher,
		logger:    logger.With("module", "users"),
		params:    cryptox.DefaultParams,
	}
}

// Register creates a user with an argon2id password hash and announces it to
// subscribers. A taken email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password string) (models.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.Identity{}, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	hash, err := cryptox.HashPasswordWithParams(password, s.params)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	var created *models.StoredUser
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return common.ErrorAlreadyExists
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		var createErr error
		created, createErr = repo.Create(ctx, &models.StoredUser{Email: email, PasswordHash: hash})
		return createErr
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return models.Identity{}, err
		}
		return models.Identity{}, fmt.Errorf("error creating user: %w", err)
	}

	id := created.Identity()
	s.logger.Info(ctx, "user registered", "user_id", id.ID)
	if s.publisher != nil {
		s.publisher.Publish(id)
	}
	return id, nil
}

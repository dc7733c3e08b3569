// Package sessions provides the PostgreSQL-backed session store. Sessions
// live in the same database as users, so they survive restarts and redeploys.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/dbx"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// PostgresRepository implements session CRUD over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx). Backend failures wrap common.ErrSessionStoreUnavailable.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: db error: %w", common.ErrSessionStoreUnavailable, err)
}

// Create inserts a session record.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, email, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	var userID, email sql.NullString
	if s.Identity != nil {
		userID = sql.NullString{String: s.Identity.ID, Valid: true}
		email = sql.NullString{String: s.Identity.Email, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, query, s.ID, userID, email, s.ExpiresAt); err != nil {
		return unavailable(err)
	}
	return nil
}

// Find returns the session with the given id, expired or not.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, user_id, email, expires_at
		FROM sessions
		WHERE id = $1
	`
	var (
		s             models.Session
		userID, email sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &userID, &email, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, unavailable(err)
	}
	if userID.Valid {
		s.Identity = &models.Identity{ID: userID.String, Email: email.String}
	}
	return &s, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM sessions
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Ping checks that the sessions table is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM sessions LIMIT 1`).Scan(&one); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return unavailable(err)
	}
	return nil
}

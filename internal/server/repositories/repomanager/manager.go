package repomanager

import (
	"context"
	"database/sql"

	"github.com/muneebhashone/gqlauth/internal/dbx"
	"github.com/muneebhashone/gqlauth/internal/server/repositories/sessions"
	"github.com/muneebhashone/gqlauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) *sessions.PostgresRepository
}

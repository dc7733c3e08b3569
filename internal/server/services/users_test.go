package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/cryptox"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T, f *fakeUsers, pub Publisher) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewUserService(db, fakeRepos{users: f}, pub, logging.Nop())
	s.params = fastParams
	return s, mock
}

func TestRegister_Success(t *testing.T) {
	f := newFakeUsers()
	pub := &recordingPublisher{}
	s, mock := newUserService(t, f, pub)
	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := s.Register(context.Background(), " new@x.com ", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: "generated-id", Email: "new@x.com"}, id)
	assert.Equal(t, []models.Identity{id}, pub.got)

	require.Len(t, f.created, 1)
	ok, err := cryptox.ComparePassword("pw", f.created[0].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFakeUsers(storedUser("u1", "a@x.com", "secret"))
	pub := &recordingPublisher{}
	s, mock := newUserService(t, f, pub)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Register(context.Background(), "a@x.com", "pw")
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Empty(t, pub.got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Validation(t *testing.T) {
	s, _ := newUserService(t, newFakeUsers(), nil)

	_, err := s.Register(context.Background(), "", "pw")
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.Register(context.Background(), "a@x.com", "")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestRegister_StoreFailure(t *testing.T) {
	f := newFakeUsers()
	f.findErr = errors.New("db error: boom")
	s, mock := newUserService(t, f, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Register(context.Background(), "a@x.com", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRegister_BeginFails(t *testing.T) {
	s, mock := newUserService(t, newFakeUsers(), nil)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	_, err := s.Register(context.Background(), "a@x.com", "pw")
	require.ErrorIs(t, err, sql.ErrConnDone)
}

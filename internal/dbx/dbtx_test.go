package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func insertOK(ctx context.Context, tx DBTX) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sessions(id) VALUES ('s1')`)
	return err
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		expect  func(sqlmock.Sqlmock)
		fn      func(context.Context, DBTX) error
		wantErr error
		wantMsg string
	}{
		{
			name: "commits on success",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(`INSERT INTO sessions`).WillReturnResult(sqlmock.NewResult(1, 1))
				m.ExpectCommit()
			},
			fn: insertOK,
		},
		{
			name: "rolls back on fn error",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback()
			},
			fn:      func(context.Context, DBTX) error { return boom },
			wantErr: boom,
		},
		{
			name: "rollback failure is joined",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback().WillReturnError(errors.New("conn reset"))
			},
			fn:      func(context.Context, DBTX) error { return boom },
			wantErr: boom,
			wantMsg: "rollback: conn reset",
		},
		{
			name: "begin failure skips fn",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin().WillReturnError(errors.New("conn refused"))
			},
			fn:      func(context.Context, DBTX) error { panic("must not run") },
			wantMsg: "begin tx: conn refused",
		},
		{
			name: "commit failure",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectCommit().WillReturnError(errors.New("serialization failure"))
			},
			fn:      func(context.Context, DBTX) error { return nil },
			wantMsg: "commit: serialization failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			tt.expect(mock)

			err := WithTx(context.Background(), db, nil, tt.fn)
			switch {
			case tt.wantErr == nil && tt.wantMsg == "":
				require.NoError(t, err)
			default:
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				if tt.wantMsg != "" {
					assert.Contains(t, err.Error(), tt.wantMsg)
				}
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	require.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
			panic("kaput")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

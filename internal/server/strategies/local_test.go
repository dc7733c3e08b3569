package strategies

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocalVerifier struct {
	calls int
}

func (f *fakeLocalVerifier) VerifyLocal(_ context.Context, email, password string) (models.Identity, error) {
	f.calls++
	if email == "a@x.com" && password == "secret" {
		return models.Identity{ID: "u1", Email: email}, nil
	}
	return models.Identity{}, common.ErrInvalidCredentials
}

func TestLocalStrategy(t *testing.T) {
	alice := models.Identity{ID: "u1", Email: "a@x.com"}

	form := func(v url.Values) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(v.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return r
	}
	jsonReq := func(body string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
		return r
	}

	tests := []struct {
		name      string
		req       *http.Request
		want      models.Identity
		wantErr   error
		wantCalls int
	}{
		{"form ok", form(url.Values{"email": {"a@x.com"}, "password": {"secret"}}), alice, nil, 1},
		{"json ok", jsonReq(`{"email":"a@x.com","password":"secret"}`), alice, nil, 1},
		{"wrong password", form(url.Values{"email": {"a@x.com"}, "password": {"nope"}}), models.Identity{}, common.ErrInvalidCredentials, 1},
		{"missing password", form(url.Values{"email": {"a@x.com"}}), models.Identity{}, common.ErrInvalidCredentials, 0},
		{"empty json", jsonReq(`{}`), models.Identity{}, common.ErrInvalidCredentials, 0},
		{"malformed json", jsonReq(`{"email":`), models.Identity{}, common.ErrStrategyInput, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeLocalVerifier{}
			got, err := NewLocalStrategy(v).Authenticate(context.Background(), tt.req)
			assert.Equal(t, tt.wantCalls, v.calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package services

import (
	"context"
	"sync"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/cryptox"
	"github.com/muneebhashone/gqlauth/internal/dbx"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/repositories/users"
)

var fastParams = cryptox.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*models.StoredUser
	findErr error
	lookups int
	created []*models.StoredUser
}

func newFakeUsers(us ...*models.StoredUser) *fakeUsers {
	f := &fakeUsers{byEmail: map[string]*models.StoredUser{}}
	for _, u := range us {
		f.byEmail[u.Email] = u
	}
	return f
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.StoredUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.StoredUser) (*models.StoredUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *u
	out.ID = "generated-id"
	out.Active = true
	f.byEmail[u.Email] = &out
	f.created = append(f.created, &out)
	return &out, nil
}

type fakeRepos struct{ users *fakeUsers }

func (r fakeRepos) Users(dbx.DBTX) users.Repository { return r.users }

type recordingPublisher struct{ got []models.Identity }

func (p *recordingPublisher) Publish(id models.Identity) { p.got = append(p.got, id) }

func storedUser(id, email, password string) *models.StoredUser {
	h, err := cryptox.HashPasswordWithParams(password, fastParams)
	if err != nil {
		panic(err)
	}
	return &models.StoredUser{ID: id, Email: email, PasswordHash: h, Active: true}
}

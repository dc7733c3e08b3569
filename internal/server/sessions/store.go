package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// Store persists session records. Find returns common.ErrorNotFound when the
// id is unknown; Delete of an unknown id succeeds. Backend failures wrap
// common.ErrSessionStoreUnavailable.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	Find(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that need expired records purged
// explicitly.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *models.Session) error {
	rec := *s
	if s.Identity != nil {
		id := *s.Identity
		rec.Identity = &id
	}
	m.mu.Lock()
	m.sessions[s.ID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Find(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	rec, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	if rec.Identity != nil {
		ident := *rec.Identity
		rec.Identity = &ident
	}
	return &rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rec := range m.sessions {
		if rec.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many records are held, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

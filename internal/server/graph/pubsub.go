package graph

import (
	"context"
	"sync"

	"github.com/muneebhashone/gqlauth/internal/server/models"
)

const defaultSubscriberBuffer = 16

// PubSub fans registered users out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type PubSub struct {
	mu     sync.Mutex
	subs   map[uint64]chan models.Identity
	next   uint64
	buffer int
}

func NewPubSub(buffer int) *PubSub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &PubSub{subs: make(map[uint64]chan models.Identity), buffer: buffer}
}

// Publish delivers id to every current subscriber.
func (p *PubSub) Publish(id models.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- id:
		default:
		}
	}
}

// Subscribe returns a channel of events that is closed once ctx is done.
func (p *PubSub) Subscribe(ctx context.Context) <-chan models.Identity {
	ch := make(chan models.Identity, p.buffer)

	p.mu.Lock()
	key := p.next
	p.next++
	p.subs[key] = ch
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, key)
		close(ch)
		p.mu.Unlock()
	}()
	return ch
}

// Subscribers reports the number of live subscriptions.
func (p *PubSub) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

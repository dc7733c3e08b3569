package server

import (
	"context"
	"time"

	"github.com/muneebhashone/gqlauth/internal/logging"
)

type sessionSweeper interface {
	Sweep(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type sweptRecorder interface {
	SessionsSwept(n int64)
}

type healthSetter interface {
	SetSessionsServing(ok bool)
}

// sweeper purges expired sessions on an interval and mirrors the store's
// health into the gRPC health service.
type sweeper struct {
	sessions sessionSweeper
	swept    sweptRecorder
	health   healthSetter
	logger   logging.Logger
}

func (s *sweeper) run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *sweeper) tick(ctx context.Context) {
	err := s.sessions.Ping(ctx)
	s.health.SetSessionsServing(err == nil)
	if err != nil {
		s.logger.Warn(ctx, "session store unhealthy", "error", err)
		return
	}

	n, err := s.sessions.Sweep(ctx)
	if err != nil {
		s.logger.Warn(ctx, "session sweep failed", "error", err)
		return
	}
	s.swept.SessionsSwept(n)
	if n > 0 {
		s.logger.Debug(ctx, "expired sessions removed", "count", n)
	}
}

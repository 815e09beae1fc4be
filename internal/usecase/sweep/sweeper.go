package sweep

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/baticonnect/artisan-backend/internal/goroutine"
)

// Runner executes one sweep pass.
type Runner interface {
	Execute(ctx context.Context) (*Report, error)
}

// Sweeper runs the deadline sweep on a fixed interval until the context is
// cancelled. A pass is also triggerable on demand through the admin API.
type Sweeper struct {
	runner   Runner
	interval time.Duration
	log      *logrus.Logger
}

func NewSweeper(runner Runner, interval time.Duration, log *logrus.Logger) *Sweeper {
	return &Sweeper{runner: runner, interval: interval, log: log}
}

// Start launches the periodic loop in a recovered goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.WithField("interval", s.interval).Info("deadline sweeper started")
		for {
			select {
			case <-ctx.Done():
				s.log.Info("deadline sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.runner.Execute(ctx); err != nil {
					s.log.WithError(err).Error("deadline sweep failed")
				}
			}
		}
	})
}

package browser

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
)

// WarmupSupervisor runs the pool's one-time warm-up in the background after a delay,
// so server startup is never blocked by the browser launch
type WarmupSupervisor struct {
	pool    *WarmPool
	enabled bool
	delay   time.Duration
	logger  arbor.ILogger

	startOnce sync.Once
	done      chan struct{}
}

func NewWarmupSupervisor(pool *WarmPool, config common.WarmupConfig, logger arbor.ILogger) *WarmupSupervisor {
	return &WarmupSupervisor{
		pool:    pool,
		enabled: config.Enabled && pool != nil,
		delay:   common.ParseDuration(config.Delay, 2*time.Second),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start schedules the warm-up. Later calls are ignored. Cancelling ctx before the
// delay elapses skips the warm-up entirely.
func (s *WarmupSupervisor) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		if !s.enabled {
			s.logger.Info().Msg("Browser warm-up disabled - every request launches its own browser")
			close(s.done)
			return
		}

		common.SafeGo(s.logger, "browser-warmup", func() {
			defer close(s.done)

			timer := time.NewTimer(s.delay)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				s.logger.Debug().Msg("Browser warm-up cancelled before start")
				return
			case <-timer.C:
			}

			// Outcome is logged and recorded by the pool
			_ = s.pool.Warm(ctx)
		})
	})
}

// Done is closed once the warm-up attempt has finished, was skipped, or is disabled
func (s *WarmupSupervisor) Done() <-chan struct{} {
	return s.done
}

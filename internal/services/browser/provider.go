package browser

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/interfaces"
	"github.com/khawaidev/fapi/internal/metrics"
)

// SessionProvider hands each request an isolated page, preferring the warm browser
// and falling back to a single fresh launch
type SessionProvider struct {
	pool     *WarmPool
	launcher interfaces.BrowserLauncher
	logger   arbor.ILogger
	metrics  *metrics.Metrics

	active atomic.Int64
}

// NewSessionProvider creates a provider; pool may be nil when warm-up is disabled
func NewSessionProvider(pool *WarmPool, launcher interfaces.BrowserLauncher, logger arbor.ILogger, m *metrics.Metrics) *SessionProvider {
	return &SessionProvider{
		pool:     pool,
		launcher: launcher,
		logger:   logger,
		metrics:  m,
	}
}

// Acquire returns a shared session from the warm browser when possible, otherwise an
// owned session backed by a newly launched browser. Only a failed launch is returned.
func (p *SessionProvider) Acquire(ctx context.Context) (*Session, error) {
	if p.pool != nil {
		session, err := p.pool.TryAcquireWarm(ctx)
		if err == nil {
			p.metrics.ObserveAcquire(metrics.AcquireWarm)
			return p.track(session), nil
		}
		if !errors.Is(err, ErrPoolNotReady) {
			p.logger.Warn().Err(err).Msg("Warm browser reuse failed - launching fallback browser")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	instance, err := p.launcher.Launch(ctx)
	if err != nil {
		p.metrics.ObserveAcquire(metrics.AcquireFailed)
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := instance.NewPage(ctx)
	if err != nil {
		instance.Close()
		p.metrics.ObserveAcquire(metrics.AcquireFailed)
		return nil, fmt.Errorf("failed to open page on launched browser: %w", err)
	}

	p.metrics.ObserveAcquire(metrics.AcquireFallback)
	return p.track(newSession(page, OwnershipOwned, instance)), nil
}

// ActiveSessions returns how many acquired sessions have not been released yet
func (p *SessionProvider) ActiveSessions() int64 {
	return p.active.Load()
}

func (p *SessionProvider) track(session *Session) *Session {
	p.active.Add(1)
	p.metrics.SessionOpened()
	session.onRelease = func() {
		p.active.Add(-1)
		p.metrics.SessionReleased()
	}

	p.logger.Debug().
		Str("session_id", session.ID).
		Str("ownership", session.Ownership.String()).
		Msg("Browser session acquired")
	return session
}

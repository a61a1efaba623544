package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/interfaces"
	"github.com/khawaidev/fapi/internal/metrics"
)

var (
	// ErrPoolNotReady is returned by TryAcquireWarm when no warm browser can be used
	ErrPoolNotReady = errors.New("warm browser not ready")
	// ErrPoolClosed is returned when the pool was shut down
	ErrPoolClosed = errors.New("warm pool closed")
)

// WarmState is the lifecycle of the pool's single pre-launched browser
type WarmState int

const (
	WarmStateCold WarmState = iota
	WarmStateWarming
	WarmStateReady
	WarmStateFailed
	WarmStateClosed
)

func (s WarmState) String() string {
	switch s {
	case WarmStateCold:
		return "cold"
	case WarmStateWarming:
		return "warming"
	case WarmStateReady:
		return "ready"
	case WarmStateFailed:
		return "failed"
	case WarmStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PoolStatus is a point-in-time view of the warm pool
type PoolStatus struct {
	State      string    `json:"state"`
	LastError  string    `json:"last_error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	WarmupTime string    `json:"warmup_time,omitempty"`
}

// WarmPool holds at most one pre-launched, pre-navigated browser shared by all requests.
// Warm is the only writer of the ready transition; requests only read.
type WarmPool struct {
	launcher          interfaces.BrowserLauncher
	targetURL         string
	navigationTimeout time.Duration
	logger            arbor.ILogger
	metrics           *metrics.Metrics

	mu         sync.RWMutex
	state      WarmState
	instance   interfaces.BrowserInstance
	primer     interfaces.BrowserPage // Page navigated during warm-up, kept open for the browser's lifetime
	lastErr    error
	startedAt  time.Time
	finishedAt time.Time
}

// NewWarmPool creates a cold pool that warms against targetURL
func NewWarmPool(launcher interfaces.BrowserLauncher, targetURL string, navigationTimeout time.Duration, logger arbor.ILogger, m *metrics.Metrics) *WarmPool {
	m.SetWarmState(int(WarmStateCold))
	return &WarmPool{
		launcher:          launcher,
		targetURL:         targetURL,
		navigationTimeout: navigationTimeout,
		logger:            logger,
		metrics:           m,
		state:             WarmStateCold,
	}
}

// Warm launches the browser, navigates a primer page to the target and marks the pool ready.
// It runs at most once; a failure leaves the pool in the failed state without retrying.
func (p *WarmPool) Warm(ctx context.Context) error {
	p.mu.Lock()
	if p.state != WarmStateCold {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("warm pool is %s", state)
	}
	p.startedAt = time.Now()
	p.setStateLocked(WarmStateWarming)
	p.mu.Unlock()

	p.logger.Info().Str("target", p.targetURL).Msg("Warming browser")

	instance, primer, err := p.prepare(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishedAt = time.Now()

	if p.state == WarmStateClosed {
		if primer != nil {
			primer.Close()
		}
		if instance != nil {
			instance.Close()
		}
		return ErrPoolClosed
	}

	if err != nil {
		p.lastErr = err
		p.setStateLocked(WarmStateFailed)
		p.logger.Warn().
			Err(err).
			Dur("elapsed", p.finishedAt.Sub(p.startedAt)).
			Msg("Browser warm-up failed - requests will launch browsers on demand")
		return err
	}

	p.instance = instance
	p.primer = primer
	p.setStateLocked(WarmStateReady)
	p.logger.Info().
		Dur("warmup_time", p.finishedAt.Sub(p.startedAt)).
		Msg("Warm browser ready")
	return nil
}

func (p *WarmPool) prepare(ctx context.Context) (interfaces.BrowserInstance, interfaces.BrowserPage, error) {
	instance, err := p.launcher.Launch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch warm browser: %w", err)
	}

	primer, err := instance.NewPage(ctx)
	if err != nil {
		instance.Close()
		return nil, nil, fmt.Errorf("failed to open warm page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, p.navigationTimeout)
	defer cancel()
	if err := primer.Navigate(navCtx, p.targetURL); err != nil {
		primer.Close()
		instance.Close()
		return nil, nil, fmt.Errorf("failed to pre-navigate warm page: %w", err)
	}

	return instance, primer, nil
}

// TryAcquireWarm derives a fresh isolated page from the warm browser.
// The readiness check and the derivation happen under one read lock, so the
// browser cannot be closed between them. Failures leave the state untouched.
func (p *WarmPool) TryAcquireWarm(ctx context.Context) (*Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != WarmStateReady || p.instance == nil {
		return nil, ErrPoolNotReady
	}
	if !p.instance.Alive() {
		return nil, fmt.Errorf("%w: warm browser exited", ErrPoolNotReady)
	}

	page, err := p.instance.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to derive page from warm browser: %w", err)
	}
	return newSession(page, OwnershipShared, nil), nil
}

// State returns the current warm state
func (p *WarmPool) State() WarmState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Snapshot reports the pool state for the status endpoint
func (p *WarmPool) Snapshot() PoolStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := PoolStatus{
		State:      p.state.String(),
		StartedAt:  p.startedAt,
		FinishedAt: p.finishedAt,
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	if !p.startedAt.IsZero() && !p.finishedAt.IsZero() {
		status.WarmupTime = p.finishedAt.Sub(p.startedAt).String()
	}
	return status
}

// Close shuts down the warm browser. Sessions already derived from it stop working.
func (p *WarmPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == WarmStateClosed {
		return nil
	}
	p.setStateLocked(WarmStateClosed)

	var errs []error
	if p.primer != nil {
		if err := p.primer.Close(); err != nil {
			errs = append(errs, err)
		}
		p.primer = nil
	}
	if p.instance != nil {
		if err := p.instance.Close(); err != nil {
			errs = append(errs, err)
		}
		p.instance = nil
		p.logger.Info().Msg("Warm browser closed")
	}
	return errors.Join(errs...)
}

func (p *WarmPool) setStateLocked(state WarmState) {
	p.state = state
	p.metrics.SetWarmState(int(state))
}

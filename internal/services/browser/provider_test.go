package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/metrics"
	"github.com/khawaidev/fapi/internal/services/browser/browsertest"
)

func TestSessionProvider_UsesWarmBrowser(t *testing.T) {
	warmLauncher := &browsertest.FakeLauncher{}
	pool := newTestPool(warmLauncher)
	require.NoError(t, pool.Warm(context.Background()))

	fallback := &browsertest.FakeLauncher{}
	m := metrics.New()
	provider := NewSessionProvider(pool, fallback, arbor.NewLogger(), m)

	session, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OwnershipShared, session.Ownership)
	assert.Equal(t, 0, fallback.Launches())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionAcquisitions.WithLabelValues(metrics.AcquireWarm)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, int64(1), provider.ActiveSessions())

	require.NoError(t, session.Release())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, int64(0), provider.ActiveSessions())
	assert.Equal(t, 0, warmLauncher.Instances()[0].Closes())
}

func TestSessionProvider_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		pool func(t *testing.T) *WarmPool
	}{
		{
			name: "warm-up disabled",
			pool: func(t *testing.T) *WarmPool { return nil },
		},
		{
			name: "not warmed yet",
			pool: func(t *testing.T) *WarmPool { return newTestPool(&browsertest.FakeLauncher{}) },
		},
		{
			name: "warm-up failed",
			pool: func(t *testing.T) *WarmPool {
				pool := newTestPool(&browsertest.FakeLauncher{LaunchErr: errors.New("no chrome")})
				require.Error(t, pool.Warm(context.Background()))
				return pool
			},
		},
		{
			name: "warm browser broken",
			pool: func(t *testing.T) *WarmPool {
				instance := &browsertest.FakeInstance{}
				pool := newTestPool(&browsertest.FakeLauncher{InstanceFactory: func() *browsertest.FakeInstance { return instance }})
				require.NoError(t, pool.Warm(context.Background()))
				instance.NewPageErr = errors.New("browser context limit")
				return pool
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &browsertest.FakeLauncher{}
			m := metrics.New()
			provider := NewSessionProvider(tt.pool(t), fallback, arbor.NewLogger(), m)

			session, err := provider.Acquire(context.Background())
			require.NoError(t, err)

			assert.Equal(t, OwnershipOwned, session.Ownership)
			require.Equal(t, 1, fallback.Launches())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionAcquisitions.WithLabelValues(metrics.AcquireFallback)))

			require.NoError(t, session.Release())
			require.NoError(t, session.Release())
			assert.Equal(t, 1, fallback.Instances()[0].Closes(), "owned browser is closed exactly once")
		})
	}
}

func TestSessionProvider_FallbackFailurePropagates(t *testing.T) {
	m := metrics.New()
	provider := NewSessionProvider(nil, &browsertest.FakeLauncher{LaunchErr: errors.New("exec: chrome not found")}, arbor.NewLogger(), m)

	_, err := provider.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionAcquisitions.WithLabelValues(metrics.AcquireFailed)))
}

func TestSessionProvider_FallbackPageFailureClosesBrowser(t *testing.T) {
	fallback := &browsertest.FakeLauncher{InstanceFactory: func() *browsertest.FakeInstance {
		return &browsertest.FakeInstance{NewPageErr: errors.New("target crashed")}
	}}
	provider := NewSessionProvider(nil, fallback, arbor.NewLogger(), nil)

	_, err := provider.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, fallback.Instances()[0].Closes())
}

func TestSessionProvider_CancelledContext(t *testing.T) {
	fallback := &browsertest.FakeLauncher{}
	provider := NewSessionProvider(nil, fallback, arbor.NewLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.Launches())
}

package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/services/browser/browsertest"
)

const testTarget = "https://upstream.example.com/"

func newTestPool(launcher *browsertest.FakeLauncher) *WarmPool {
	return NewWarmPool(launcher, testTarget, time.Second, arbor.NewLogger(), nil)
}

func TestWarmPool_WarmSuccess(t *testing.T) {
	launcher := &browsertest.FakeLauncher{}
	pool := newTestPool(launcher)
	assert.Equal(t, WarmStateCold, pool.State())

	require.NoError(t, pool.Warm(context.Background()))
	assert.Equal(t, WarmStateReady, pool.State())

	instances := launcher.Instances()
	require.Len(t, instances, 1)
	pages := instances[0].Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, []string{testTarget}, pages[0].Navigated())

	status := pool.Snapshot()
	assert.Equal(t, "ready", status.State)
	assert.Empty(t, status.LastError)
	assert.NotEmpty(t, status.WarmupTime)
}

func TestWarmPool_WarmRunsOnce(t *testing.T) {
	launcher := &browsertest.FakeLauncher{}
	pool := newTestPool(launcher)

	require.NoError(t, pool.Warm(context.Background()))
	assert.Error(t, pool.Warm(context.Background()))
	assert.Equal(t, 1, launcher.Launches())
}

func TestWarmPool_WarmFailures(t *testing.T) {
	tests := []struct {
		name     string
		launcher *browsertest.FakeLauncher
	}{
		{
			name:     "launch fails",
			launcher: &browsertest.FakeLauncher{LaunchErr: errors.New("no chrome")},
		},
		{
			name: "page fails",
			launcher: &browsertest.FakeLauncher{InstanceFactory: func() *browsertest.FakeInstance {
				return &browsertest.FakeInstance{NewPageErr: errors.New("target crashed")}
			}},
		},
		{
			name: "navigation fails",
			launcher: &browsertest.FakeLauncher{InstanceFactory: func() *browsertest.FakeInstance {
				return &browsertest.FakeInstance{PageFactory: func() *browsertest.FakePage {
					return &browsertest.FakePage{NavigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
				}}
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newTestPool(tt.launcher)

			err := pool.Warm(context.Background())
			require.Error(t, err)
			assert.Equal(t, WarmStateFailed, pool.State())
			assert.NotEmpty(t, pool.Snapshot().LastError)

			// A failed warm-up never leaks the browser it launched
			for _, instance := range tt.launcher.Instances() {
				assert.Equal(t, 1, instance.Closes())
			}

			_, err = pool.TryAcquireWarm(context.Background())
			assert.ErrorIs(t, err, ErrPoolNotReady)
		})
	}
}

func TestWarmPool_TryAcquireWarm(t *testing.T) {
	launcher := &browsertest.FakeLauncher{}
	pool := newTestPool(launcher)

	_, err := pool.TryAcquireWarm(context.Background())
	assert.ErrorIs(t, err, ErrPoolNotReady)

	require.NoError(t, pool.Warm(context.Background()))

	first, err := pool.TryAcquireWarm(context.Background())
	require.NoError(t, err)
	second, err := pool.TryAcquireWarm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OwnershipShared, first.Ownership)
	assert.NotEqual(t, first.ID, second.ID)

	firstPage, err := first.Page()
	require.NoError(t, err)
	secondPage, err := second.Page()
	require.NoError(t, err)
	assert.NotSame(t, firstPage, secondPage)

	require.NoError(t, first.Release())
	require.NoError(t, second.Release())

	instance := launcher.Instances()[0]
	assert.Equal(t, 0, instance.Closes(), "shared sessions must not close the warm browser")
	assert.Equal(t, WarmStateReady, pool.State())
}

func TestWarmPool_TryAcquireWarm_Failures(t *testing.T) {
	t.Run("browser exited", func(t *testing.T) {
		launcher := &browsertest.FakeLauncher{}
		pool := newTestPool(launcher)
		require.NoError(t, pool.Warm(context.Background()))

		launcher.Instances()[0].Crash()

		_, err := pool.TryAcquireWarm(context.Background())
		assert.ErrorIs(t, err, ErrPoolNotReady)
		assert.Equal(t, WarmStateReady, pool.State())
	})

	t.Run("page derivation fails", func(t *testing.T) {
		instance := &browsertest.FakeInstance{}
		launcher := &browsertest.FakeLauncher{InstanceFactory: func() *browsertest.FakeInstance { return instance }}
		pool := newTestPool(launcher)
		require.NoError(t, pool.Warm(context.Background()))

		instance.NewPageErr = errors.New("context limit")

		_, err := pool.TryAcquireWarm(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPoolNotReady)
	})
}

func TestWarmPool_ConcurrentAcquire(t *testing.T) {
	launcher := &browsertest.FakeLauncher{}
	pool := newTestPool(launcher)
	require.NoError(t, pool.Warm(context.Background()))

	const workers = 16
	sessions := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := pool.TryAcquireWarm(context.Background())
			if err == nil {
				sessions[i] = session
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[interface{}]bool)
	for _, session := range sessions {
		require.NotNil(t, session)
		page, err := session.Page()
		require.NoError(t, err)
		assert.False(t, seen[page], "page handed to two sessions")
		seen[page] = true
	}
}

func TestWarmPool_Close(t *testing.T) {
	launcher := &browsertest.FakeLauncher{}
	pool := newTestPool(launcher)
	require.NoError(t, pool.Warm(context.Background()))

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	assert.Equal(t, WarmStateClosed, pool.State())
	instance := launcher.Instances()[0]
	assert.Equal(t, 1, instance.Closes())
	assert.Equal(t, 1, instance.Pages()[0].Closes())

	_, err := pool.TryAcquireWarm(context.Background())
	assert.ErrorIs(t, err, ErrPoolNotReady)
	assert.Error(t, pool.Warm(context.Background()))
}

func TestWarmPool_CloseDuringWarm(t *testing.T) {
	navigating := make(chan struct{})
	release := make(chan struct{})
	launcher := &browsertest.FakeLauncher{InstanceFactory: func() *browsertest.FakeInstance {
		return &browsertest.FakeInstance{PageFactory: func() *browsertest.FakePage {
			return &browsertest.FakePage{NavigateFunc: func(ctx context.Context, url string) error {
				close(navigating)
				<-release
				return nil
			}}
		}}
	}}
	pool := newTestPool(launcher)

	result := make(chan error, 1)
	go func() { result <- pool.Warm(context.Background()) }()

	<-navigating
	require.NoError(t, pool.Close())
	close(release)

	assert.ErrorIs(t, <-result, ErrPoolClosed)
	assert.Equal(t, WarmStateClosed, pool.State())
	assert.Equal(t, 1, launcher.Instances()[0].Closes())
}

func TestWarmState_String(t *testing.T) {
	assert.Equal(t, "cold", WarmStateCold.String())
	assert.Equal(t, "warming", WarmStateWarming.String())
	assert.Equal(t, "ready", WarmStateReady.String())
	assert.Equal(t, "failed", WarmStateFailed.String())
	assert.Equal(t, "closed", WarmStateClosed.String())
	assert.Equal(t, "unknown", WarmState(42).String())
}

package readiness_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvr-net/hotspotd/internal/readiness"
	"github.com/openvr-net/hotspotd/internal/types"
)

func TestAwaitSucceedsOnPrimary(t *testing.T) {
	p := &readiness.Prober{Clock: clock.New()}
	primary := func(ctx context.Context) (bool, error) { return true, nil }
	err := p.Await(context.Background(), time.Second, primary, nil)
	assert.Nil(t, err)
}

func TestAwaitSucceedsOnFallback(t *testing.T) {
	p := &readiness.Prober{Clock: clock.New()}
	primary := func(ctx context.Context) (bool, error) { return false, nil }
	fallback := func(ctx context.Context) (bool, types.ErrorKind, error) { return true, "", nil }
	err := p.Await(context.Background(), time.Second, primary, fallback)
	assert.Nil(t, err)
}

func TestAwaitTimesOutWithoutTouchingHostState(t *testing.T) {
	mock := clock.NewMock()
	p := &readiness.Prober{Clock: mock}

	done := make(chan *types.LifecycleError, 1)
	go func() {
		primary := func(ctx context.Context) (bool, error) { return false, nil }
		done <- p.Await(context.Background(), 500*time.Millisecond, primary, nil)
	}()

	// Advance the mock clock past the timeout in pollInterval-sized steps
	// so the ticker actually fires.
	for i := 0; i < 10; i++ {
		mock.Add(100 * time.Millisecond)
	}

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, types.ErrAPReadyTimeout, err.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not return after the mock clock passed the deadline")
	}
}

func TestAwaitPropagatesFallbackFailureKindOnTimeout(t *testing.T) {
	mock := clock.NewMock()
	p := &readiness.Prober{Clock: mock}

	done := make(chan *types.LifecycleError, 1)
	go func() {
		fallback := func(ctx context.Context) (bool, types.ErrorKind, error) {
			return false, types.ErrAPInterfaceNotUp, nil
		}
		done <- p.Await(context.Background(), 300*time.Millisecond, nil, fallback)
	}()

	for i := 0; i < 10; i++ {
		mock.Add(100 * time.Millisecond)
	}

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, types.ErrAPInterfaceNotUp, err.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not return")
	}
}

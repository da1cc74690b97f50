package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoRecoversPanicAndRecordsError(t *testing.T) {
	s := New(context.Background())
	s.Go("boom", func(ctx context.Context) error { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Wait(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	snap := s.Snapshot()
	require.Len(t, snap.Tasks, 1)
	require.EqualValues(t, 1, snap.Tasks[0].Panics)
	require.Equal(t, "kaboom", snap.Tasks[0].LastPanic)
}

func TestCanceledIsCleanExit(t *testing.T) {
	s := New(context.Background())
	s.Go0("loop", func(ctx context.Context) { <-ctx.Done() })
	s.Go("ctx", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.Zero(t, s.Snapshot().Active)
}

func TestCancelOnError(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go0("waiter", func(ctx context.Context) { <-ctx.Done() })
	s.Go("fail", func(ctx context.Context) error { return errors.New("nope") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.ErrorContains(t, s.Wait(ctx), "nope")
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	assert.Eventually(t, func() bool { return runs.Load() == 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	var flaky TaskStats
	for _, st := range s.Snapshot().Tasks {
		if st.Name == "flaky" {
			flaky = st
		}
	}
	require.EqualValues(t, 3, flaky.Started)
	require.EqualValues(t, 2, flaky.Restarts)
}

func TestGoRestartGivesUp(t *testing.T) {
	s := New(context.Background())
	s.GoRestart("dead", func(ctx context.Context) error { return errors.New("always") },
		WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.ErrorContains(t, s.Wait(ctx), "always")
}

func TestGoRefusedAfterWait(t *testing.T) {
	s := New(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	var ran atomic.Bool
	require.False(t, s.Go0("late", func(context.Context) { ran.Store(true) }))
	require.False(t, ran.Load())
	require.Zero(t, s.Snapshot().Started)
}

func TestGoRefusedAfterCancel(t *testing.T) {
	s := New(context.Background())
	require.True(t, s.Go0("early", func(ctx context.Context) { <-ctx.Done() }))
	s.Cancel()

	var ran atomic.Bool
	require.False(t, s.Go("late", func(context.Context) error { ran.Store(true); return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	require.False(t, ran.Load())
	require.EqualValues(t, 1, s.Snapshot().Started)
}

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerSkipsWhenSaturated(t *testing.T) {
	r := NewRunner(1, testLogger())
	release := make(chan struct{})
	var runs atomic.Int32

	blocking := func(context.Context, time.Time) (int, error) {
		runs.Add(1)
		<-release
		return 0, nil
	}

	require.True(t, r.Go(context.Background(), "unlock", blocking))
	// The single slot is held; the overlapping tick is dropped, not queued.
	assert.False(t, r.Go(context.Background(), "unlock", blocking))

	close(release)
	r.Wait()
	assert.Equal(t, int32(1), runs.Load())

	// With the slot free again the next tick starts.
	require.True(t, r.Go(context.Background(), "unlock", func(context.Context, time.Time) (int, error) {
		return 0, nil
	}))
	r.Wait()
}

func TestRunnerWaitBlocksUntilTicksFinish(t *testing.T) {
	r := NewRunner(3, testLogger())
	step := make(chan struct{})
	var done atomic.Bool

	require.True(t, r.Go(context.Background(), "reminder", func(context.Context, time.Time) (int, error) {
		<-step
		done.Store(true)
		return 0, nil
	}))

	step <- struct{}{}
	r.Wait()
	assert.True(t, done.Load())
}

func TestRunnerAllowsConcurrentTicksUpToLimit(t *testing.T) {
	r := NewRunner(3, testLogger())
	release := make(chan struct{})
	started := make(chan struct{}, 3)

	blocking := func(context.Context, time.Time) (int, error) {
		started <- struct{}{}
		<-release
		return 0, nil
	}

	for i := 0; i < 3; i++ {
		require.True(t, r.Go(context.Background(), "unlock", blocking))
	}
	assert.False(t, r.Go(context.Background(), "unlock", blocking))

	for i := 0; i < 3; i++ {
		<-started
	}
	close(release)
	r.Wait()
}

package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCronSchedulerRunsJob(t *testing.T) {
	s := NewCronScheduler(zaptest.NewLogger(t))

	var runs atomic.Int32
	job := JobFunc{JobName: "count", Fn: func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}}
	require.NoError(t, s.AddJob(job, "@every 1s"))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	next, ok := s.Next("count")
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	cancel()
	s.Stop()
}

func TestCronSchedulerSkipsWhileRunning(t *testing.T) {
	s := NewCronScheduler(nil)

	release := make(chan struct{})
	var runs atomic.Int32
	job := JobFunc{JobName: "slow", Fn: func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return errors.New("done")
	}}
	require.NoError(t, s.AddJob(job, "@every 1s"))

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return s.Skipped() >= 1 }, 4*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	s.Stop()
}

func TestCronSchedulerInvalidSpec(t *testing.T) {
	s := NewCronScheduler(nil)
	err := s.AddJob(JobFunc{JobName: "bad", Fn: func(context.Context) error { return nil }}, "not a spec")
	assert.Error(t, err)

	_, ok := s.Next("bad")
	assert.False(t, ok)
}

func TestCronSchedulerCancelledContext(t *testing.T) {
	s := NewCronScheduler(nil)
	var runs atomic.Int32
	require.NoError(t, s.AddJob(JobFunc{JobName: "noop", Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, "@every 1s"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)
	assert.Equal(t, int32(0), runs.Load())
}

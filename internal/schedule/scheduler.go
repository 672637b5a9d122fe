// Package schedule runs jobs on cron specs. A job that is still running
// when its next tick fires is skipped for that tick.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of scheduled work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Parser accepts five-field specs and descriptors such as @hourly or @every 10m
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronScheduler runs jobs on a robfig/cron scheduler
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	logger  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	skipped atomic.Int64
}

// NewCronScheduler creates a stopped scheduler
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(Parser)),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
		ctx:     context.Background(),
	}
}

// AddJob schedules job on spec
func (c *CronScheduler) AddJob(job Job, spec string) error {
	logger := c.logger.With(zap.String("job", job.Name()), zap.String("spec", spec))
	entryID, err := c.cron.AddFunc(spec, c.wrap(job, logger))
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c.entries[job.Name()] = entryID
	logger.Info("job scheduled")
	return nil
}

// Next returns the next activation of the named job
func (c *CronScheduler) Next(name string) (time.Time, bool) {
	id, ok := c.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return c.cron.Entry(id).Next, true
}

// Skipped returns how many ticks were skipped because the job was still running
func (c *CronScheduler) Skipped() int64 {
	return c.skipped.Load()
}

// Start begins firing jobs. Jobs receive ctx.
func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

// Run starts the scheduler, blocks until ctx is done, then stops it
func (c *CronScheduler) Run(ctx context.Context) {
	c.Start(ctx)
	<-ctx.Done()
	c.Stop()
}

func (c *CronScheduler) wrap(job Job, logger *zap.Logger) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			c.skipped.Add(1)
			logger.Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		logger.Info("job started")
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}

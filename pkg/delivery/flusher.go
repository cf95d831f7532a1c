package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vnykmshr/sendgate/pkg/scheduling/scheduler"
	"github.com/vnykmshr/sendgate/pkg/scheduling/workerpool"
)

const flushJobID = "delivery-flush"

// FlusherConfig configures a Flusher.
type FlusherConfig struct {
	// Schedule is a cron expression or descriptor such as "@every 30s".
	Schedule string

	// Scheduler runs the flush job. A private scheduler is created and
	// owned by the Flusher when nil.
	Scheduler scheduler.Scheduler

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Flusher persists a Tracker's snapshot to a Sink on a cron schedule.
type Flusher struct {
	tracker  *Tracker
	sink     Sink
	schedule string
	sched    scheduler.Scheduler
	ownSched bool
	logger   *zap.Logger
}

// NewFlusher creates a Flusher. The schedule is validated immediately.
func NewFlusher(tracker *Tracker, sink Sink, cfg FlusherConfig) (*Flusher, error) {
	if tracker == nil {
		return nil, fmt.Errorf("flusher: tracker is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("flusher: sink is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Flusher{
		tracker:  tracker,
		sink:     sink,
		schedule: cfg.Schedule,
		sched:    cfg.Scheduler,
		logger:   logger,
	}
	if f.sched == nil {
		f.sched = scheduler.NewWithConfig(scheduler.Config{Logger: logger})
		f.ownSched = true
	}

	task := workerpool.TaskFunc(f.Flush)
	if err := f.sched.ScheduleCron(flushJobID, cfg.Schedule, task); err != nil {
		if f.ownSched {
			<-f.sched.Stop()
		}
		return nil, fmt.Errorf("flusher: %w", err)
	}

	return f, nil
}

// Start begins periodic flushing. It starts the scheduler only when the
// Flusher owns it.
func (f *Flusher) Start() error {
	if !f.ownSched {
		return nil
	}
	return f.sched.Start()
}

// Flush persists the current snapshot immediately.
func (f *Flusher) Flush(ctx context.Context) error {
	if err := f.tracker.Persist(ctx, f.sink); err != nil {
		f.logger.Error("delivery metrics flush failed", zap.Error(err))
		return err
	}
	return nil
}

// Stop cancels the schedule and performs a final flush.
func (f *Flusher) Stop(ctx context.Context) error {
	f.sched.Cancel(flushJobID)
	if f.ownSched {
		select {
		case <-f.sched.Stop():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.Flush(ctx)
}

package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
	"github.com/vnykmshr/sendgate/pkg/scheduling/workerpool"
)

// Scheduler runs tasks on cron schedules.
type Scheduler interface {
	// ScheduleCron registers task under id using a cron expression.
	// Both five-field and six-field (leading seconds) expressions are
	// accepted, as are descriptors such as "@hourly" and "@every 5m".
	ScheduleCron(id, expr string, task workerpool.Task) error

	// ScheduleRepeating registers task to run every interval.
	// Intervals below one second are rounded up to one second.
	ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error

	// Cancel removes the job registered under id.
	Cancel(id string) bool

	// Next returns the next activation time of the job registered under id.
	Next(id string) (time.Time, bool)

	// List returns all registered jobs ordered by next activation.
	List() []Job

	// Start begins running jobs.
	Start() error

	// Stop halts the schedule and returns a channel that closes once
	// running jobs have finished.
	Stop() <-chan struct{}
}

// Job describes a registered job.
type Job struct {
	ID      string
	Spec    string
	Next    time.Time
	Prev    time.Time
	Created time.Time
}

// Config holds scheduler configuration.
type Config struct {
	// WorkerPool executes jobs. A private pool is created when nil.
	WorkerPool workerpool.Pool

	// Location is used to evaluate cron expressions. Defaults to time.Local.
	Location *time.Location

	// MaxJobs bounds the number of registered jobs. Defaults to 1000.
	MaxJobs int

	// Logger receives job failures and cron diagnostics.
	Logger *zap.Logger
}

const defaultMaxJobs = 1000

type job struct {
	id      string
	spec    string
	entryID cron.EntryID
	task    workerpool.Task
	created time.Time
}

type scheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	pool     workerpool.Pool
	ownPool  bool
	location *time.Location
	maxJobs  int
	logger   *zap.Logger

	mu       sync.RWMutex
	jobs     map[string]*job
	running  bool
	stopped  bool
	stopDone chan struct{}
	drained  chan struct{}
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobs
	}

	s := &scheduler{
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		pool:     cfg.WorkerPool,
		location: location,
		maxJobs:  maxJobs,
		logger:   logger,
		jobs:     make(map[string]*job),
		drained:  make(chan struct{}),
	}

	if s.pool == nil {
		s.pool = workerpool.NewWithConfig(workerpool.Config{
			WorkerCount:     2,
			QueueSize:       16,
			BufferedResults: true,
		})
		s.ownPool = true
		go s.drainResults()
	} else {
		close(s.drained)
	}

	cronLogger := NewCronLogger(logger)
	s.cron = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)

	return s
}

func (s *scheduler) ScheduleCron(id, expr string, task workerpool.Task) error {
	if expr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}

	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	return s.add(id, expr, schedule, task)
}

func (s *scheduler) ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	return s.add(id, "@every "+interval.String(), cron.Every(interval), task)
}

func (s *scheduler) add(id, spec string, schedule cron.Schedule, task workerpool.Task) error {
	if id == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("cannot schedule job %q: %w", id, sgerrors.ErrClosed)
	}
	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job with ID %q already exists, cancel it first", id)
	}
	if len(s.jobs) >= s.maxJobs {
		return fmt.Errorf("cannot schedule job %q: maximum of %d jobs reached: %w",
			id, s.maxJobs, sgerrors.ErrCapacityExceeded)
	}

	j := &job{
		id:      id,
		spec:    spec,
		task:    task,
		created: time.Now(),
	}
	j.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() { s.dispatch(j) }))
	s.jobs[id] = j

	return nil
}

// dispatch hands a due job to the worker pool.
func (s *scheduler) dispatch(j *job) {
	if err := s.pool.Submit(j.task); err != nil {
		s.logger.Warn("scheduled job dropped",
			zap.String("job_id", j.id),
			zap.Error(err))
	}
}

func (s *scheduler) drainResults() {
	defer close(s.drained)

	for r := range s.pool.Results() {
		if r.Error != nil {
			s.logger.Error("scheduled job failed",
				zap.Duration("duration", r.Duration),
				zap.Error(r.Error))
		}
	}
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[id]
	if !exists {
		return false
	}
	s.cron.Remove(j.entryID)
	delete(s.jobs, id)
	return true
}

func (s *scheduler) Next(id string) (time.Time, bool) {
	s.mu.RLock()
	j, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}, false
	}

	return s.nextOf(j), true
}

func (s *scheduler) nextOf(j *job) time.Time {
	entry := s.cron.Entry(j.entryID)
	if !entry.Next.IsZero() {
		return entry.Next
	}
	// Entries have no computed activation until the cron is started.
	if entry.Schedule != nil {
		return entry.Schedule.Next(time.Now().In(s.location))
	}
	return time.Time{}
}

func (s *scheduler) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		jobs = append(jobs, Job{
			ID:      j.id,
			Spec:    j.spec,
			Next:    s.nextOf(j),
			Prev:    entry.Prev,
			Created: j.created,
		})
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].Next.Before(jobs[k].Next)
	})

	return jobs
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler: %w", sgerrors.ErrClosed)
	}
	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	s.cron.Start()
	return nil
}

func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopDone != nil {
		return s.stopDone
	}
	s.running = false
	s.stopped = true
	s.stopDone = make(chan struct{})

	cronDone := s.cron.Stop()
	go func(done chan struct{}) {
		defer close(done)
		<-cronDone.Done()
		if s.ownPool {
			<-s.pool.Shutdown()
		}
		<-s.drained
	}(s.stopDone)

	return s.stopDone
}

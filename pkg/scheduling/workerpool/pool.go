package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
	"github.com/vnykmshr/sendgate/pkg/common/validation"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// Pool represents a worker pool that can execute tasks concurrently.
type Pool interface {
	// Submit adds a task to the pool for execution.
	// Returns an error if the pool is shut down.
	Submit(task Task) error

	// SubmitWithContext submits a task with a context. The context bounds
	// the queuing and is handed to the task when it runs.
	SubmitWithContext(ctx context.Context, task Task) error

	// Results returns a channel of task results.
	// The channel is closed when the pool is shut down and all tasks are complete.
	Results() <-chan Result

	// Shutdown stops accepting tasks, lets queued tasks complete and
	// returns a channel that closes when every worker has exited.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the maximum number of tasks that can be queued.
	// Zero means Submit blocks until a worker takes the task.
	QueueSize int

	// TaskTimeout bounds each task execution. Zero means no timeout.
	TaskTimeout time.Duration

	// BufferedResults sizes the result channel to WorkerCount+QueueSize.
	BufferedResults bool

	// ResultTimeout is how long a worker waits for a reader of Results
	// before dropping the result. Defaults to 100ms.
	ResultTimeout time.Duration

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task)

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result)
}

const defaultResultTimeout = 100 * time.Millisecond

// job is a queued task and the context it was submitted with.
type job struct {
	task Task
	ctx  context.Context
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config

	jobs    chan job
	results chan Result
	closing chan struct{}
	done    chan struct{}
	once    sync.Once

	mu     sync.RWMutex
	closed bool

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64

	wg sync.WaitGroup
}

// New creates a new worker pool with the specified number of workers and queue size.
// It panics on invalid parameters; use NewSafe to get an error instead.
func New(workerCount, queueSize int) Pool {
	pool, err := NewSafe(workerCount, queueSize)
	if err != nil {
		panic(err)
	}
	return pool
}

// NewSafe creates a new worker pool, returning an error for invalid parameters.
func NewSafe(workerCount, queueSize int) (Pool, error) {
	return NewWithConfigSafe(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
// It panics on invalid configuration.
func NewWithConfig(config Config) Pool {
	pool, err := NewWithConfigSafe(config)
	if err != nil {
		panic(err)
	}
	return pool
}

// NewWithConfigSafe creates a new worker pool with the specified configuration.
func NewWithConfigSafe(config Config) (Pool, error) {
	return newPool(config)
}

func newPool(config Config) (*workerPool, error) {
	if err := validation.ValidatePositive("workerpool", "WorkerCount", config.WorkerCount); err != nil {
		return nil, err
	}
	if config.QueueSize < 0 {
		return nil, sgerrors.NewValidationError("workerpool", "QueueSize", config.QueueSize,
			"must be non-negative").
			WithHint("use 0 for an unbuffered queue")
	}
	if config.ResultTimeout <= 0 {
		config.ResultTimeout = defaultResultTimeout
	}

	resultSize := 0
	if config.BufferedResults {
		resultSize = config.WorkerCount + config.QueueSize
	}

	p := &workerPool{
		config:  config,
		jobs:    make(chan job, config.QueueSize),
		results: make(chan Result, resultSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	p.wg.Add(config.WorkerCount)
	for id := 0; id < config.WorkerCount; id++ {
		go p.work(id)
	}

	return p, nil
}

func (p *workerPool) ActiveWorkers() int {
	return int(p.active.Load())
}

func (p *workerPool) TotalSubmitted() int64 {
	return p.submitted.Load()
}

func (p *workerPool) TotalCompleted() int64 {
	return p.completed.Load()
}

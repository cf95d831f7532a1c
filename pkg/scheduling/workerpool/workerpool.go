package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
)

// PanicError is the Result.Error of a task that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext queues task, blocking while the queue is full. ctx
// bounds that wait and is handed to the task when it runs; a pool
// TaskTimeout further limits the run.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cannot submit task: %w", err)
	}

	// Shutdown closes jobs under the write lock, so holding the read lock
	// keeps the send below safe.
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("cannot submit task: %w", sgerrors.ErrClosed)
	}

	select {
	case p.jobs <- job{task: task, ctx: ctx}:
		p.submitted.Add(1)
		return nil
	case <-p.closing:
		return fmt.Errorf("cannot submit task: %w", sgerrors.ErrClosed)
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: %w", ctx.Err())
	}
}

func (p *workerPool) Results() <-chan Result {
	return p.results
}

// Shutdown stops intake. Queued jobs still run; the returned channel closes
// once the last worker exits, after Results has been closed.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.once.Do(func() {
		// Wake submitters blocked on a full queue before taking the lock.
		close(p.closing)

		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		go func() {
			p.wg.Wait()
			close(p.results)
			close(p.done)
		}()
	})

	return p.done
}

func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

func (p *workerPool) QueueSize() int {
	return len(p.jobs)
}

func (p *workerPool) work(id int) {
	defer p.wg.Done()

	for j := range p.jobs {
		p.publish(p.execute(id, j))
	}
}

func (p *workerPool) execute(id int, j job) (result Result) {
	start := time.Now()
	result = Result{Task: j.task, WorkerID: id}

	p.active.Add(1)
	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(id, j.task)
	}

	defer func() {
		if r := recover(); r != nil {
			result.Error = &PanicError{Value: r, Stack: debug.Stack()}
		}
		result.Duration = time.Since(start)

		p.active.Add(-1)
		p.completed.Add(1)
		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(id, result)
		}
	}()

	ctx := j.ctx
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	result.Error = j.task.Execute(ctx)
	return result
}

// publish delivers r unless nobody reads Results within ResultTimeout.
func (p *workerPool) publish(r Result) {
	timer := time.NewTimer(p.config.ResultTimeout)
	defer timer.Stop()

	select {
	case p.results <- r:
	case <-timer.C:
	}
}

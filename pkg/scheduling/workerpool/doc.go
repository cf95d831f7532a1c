/*
Package workerpool provides a fixed-size worker pool with a bounded queue.

Workers pull tasks from the queue and execute them with the context given at
submission, bounded by the pool's TaskTimeout. Panics are recovered and
reported as task errors.

Basic usage:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer pool.Shutdown()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		return sender.Deliver(ctx)
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("failed to submit: %v", err)
	}

	result := <-pool.Results()
	if result.Error != nil {
		log.Printf("task failed: %v", result.Error)
	}

Results:

Every executed task produces a Result. When nobody reads Results, a worker
gives up on delivering the result after Config.ResultTimeout and moves on.
Set BufferedResults when results are collected after submission.

Shutdown:

Shutdown stops accepting tasks, waits for the queued ones to finish and then
closes the Results channel:

	done := pool.Shutdown()
	for r := range pool.Results() {
		handle(r)
	}
	<-done

Metrics:

NewWithConfigAndMetrics records the pool size and the number of busy
workers as Prometheus gauges labelled with the pool name.
*/
package workerpool

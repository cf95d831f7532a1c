/*
Package scheduling groups the execution primitives used by sendgate:

  - workerpool: fixed worker pool with a bounded queue, used to send batches
    of messages concurrently
  - scheduler: cron schedules on top of a worker pool, used to flush delivery
    metrics periodically

Both integrate with context for cancellation and with pkg/metrics for
Prometheus instrumentation.
*/
package scheduling

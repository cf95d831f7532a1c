/*
Package concurrency caps how many operations run at once.

sendgate uses it to bound simultaneous SMTP connections when a batch runs
more workers than the server accepts connections from one client:

	conns, err := concurrency.NewSafe(2)
	if err != nil {
		return err
	}

	if err := conns.Acquire(ctx); err != nil {
		return err
	}
	defer conns.Release()

Permits are granted in the order Acquire was called. A waiter whose context
ends is removed from the queue; if a permit reached it at the same moment,
the permit moves on to the next waiter.

NewWithRegistry wraps a limiter in a MetricsLimiter that exports held and
waiting permits as the sendgate_concurrency_in_use and
sendgate_concurrency_waiting gauges.
*/
package concurrency

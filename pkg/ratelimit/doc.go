/*
Package ratelimit groups the throttles used on the send path.

  - window: the send gate, three fixed windows (second, hour, day) that stall
    a sender until the limiting window rolls over
  - concurrency: a permit limiter capping simultaneous SMTP connections

The gate decides when a message may go out; the connection limiter decides
how many may be in transit at once. A sender passes the gate first and then
waits for a connection slot:

	gate, err := window.NewSafe(10, 1000, 10000)
	if err != nil {
		return err
	}
	conns := concurrency.New(2)

	if err := gate.Wait(ctx); err != nil {
		return err
	}
	if err := conns.Acquire(ctx); err != nil {
		return err
	}
	defer conns.Release()
*/
package ratelimit

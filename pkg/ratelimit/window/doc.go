/*
Package window provides a three-window send gate for outgoing mail.

A Gate keeps one counter per fixed window (one second, one hour, one day).
Each window starts at the first admission after the previous one has
elapsed and is right-open: a window that started at t covers [t, t+d).

Admission is by delay, never by rejection:

	gate, err := window.NewSafe(10, 1000, 10000)
	if err != nil {
		return err
	}

	gate.Admit() // may stall the calling goroutine
	send(msg)

When a ceiling is reached the caller is stalled. The wait is chosen from the
first limiting window in second, hour, day order: exactly one second for the
second window, otherwise the time left until the hour or day window ends.
Limits are evaluated again after every stall before the send is counted.

Admit cannot be canceled. Wait accepts a context and gives up without
counting the send when the context is done. TryAdmit never blocks and
returns a *RateLimitError that carries the time until the limiting window
ends.

All gates are safe for concurrent use.
*/
package window

package window

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// gate implements Gate with one mutex over all three windows.
type gate struct {
	mu sync.Mutex

	maxPerSecond int
	maxPerHour   int
	maxPerDay    int

	secondStart time.Time
	hourStart   time.Time
	dayStart    time.Time

	secondCount int
	hourCount   int
	dayCount    int

	clock  Clock
	logger *zap.Logger

	// hooks used by the metrics decorator
	onStall  func(w Window, d time.Duration)
	onAdmit  func(c Counts)
	onReject func(w Window)
}

// Admit blocks until the send may proceed.
func (g *gate) Admit() {
	_ = g.Wait(context.Background())
}

// Wait blocks until the send may proceed or ctx is done.
//
// After a stall the limits are evaluated again before counting, so a burst
// of stalled callers cannot all pass at once when the window rolls over.
func (g *gate) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	for {
		g.mu.Lock()
		now := g.clock.Now()
		g.resetElapsed(now)

		w, delay, limited := g.limitedBy(now)
		if !limited {
			counts := g.admitLocked()
			g.mu.Unlock()
			if g.onAdmit != nil {
				g.onAdmit(counts)
			}
			return nil
		}
		g.mu.Unlock()

		g.logger.Warn("rate limit reached, waiting",
			zap.Stringer("window", w),
			zap.Duration("wait", delay),
		)
		if g.onStall != nil {
			g.onStall(w, delay)
		}

		select {
		case <-g.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryAdmit admits the send only if no ceiling is reached.
func (g *gate) TryAdmit() error {
	g.mu.Lock()
	now := g.clock.Now()
	g.resetElapsed(now)

	w, _, limited := g.limitedBy(now)
	if limited {
		retry := g.windowStart(w).Add(w.Duration()).Sub(now)
		if retry < 0 {
			retry = 0
		}
		g.mu.Unlock()
		if g.onReject != nil {
			g.onReject(w)
		}
		return &RateLimitError{Window: w, RetryAfter: retry}
	}

	counts := g.admitLocked()
	g.mu.Unlock()
	if g.onAdmit != nil {
		g.onAdmit(counts)
	}
	return nil
}

// Counts returns the current counters.
func (g *gate) Counts() Counts {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.countsLocked()
}

// Limits returns the configured ceilings.
func (g *gate) Limits() Limits {
	return Limits{
		PerSecond: g.maxPerSecond,
		PerHour:   g.maxPerHour,
		PerDay:    g.maxPerDay,
	}
}

// resetElapsed starts a new window for every window whose age has reached
// its duration. Windows are right-open: [start, start+d).
func (g *gate) resetElapsed(now time.Time) {
	if now.Sub(g.secondStart) >= time.Second {
		g.secondCount = 0
		g.secondStart = now
	}
	if now.Sub(g.hourStart) >= time.Hour {
		g.hourCount = 0
		g.hourStart = now
	}
	if now.Sub(g.dayStart) >= 24*time.Hour {
		g.dayCount = 0
		g.dayStart = now
	}
}

// limitedBy reports the first window, in second, hour, day order, whose
// counter is at its ceiling, and how long a blocking caller should wait.
func (g *gate) limitedBy(now time.Time) (Window, time.Duration, bool) {
	switch {
	case g.secondCount >= g.maxPerSecond:
		return WindowSecond, time.Second, true
	case g.hourCount >= g.maxPerHour:
		return WindowHour, clampWait(g.hourStart.Add(time.Hour).Sub(now)), true
	case g.dayCount >= g.maxPerDay:
		return WindowDay, clampWait(g.dayStart.Add(24 * time.Hour).Sub(now)), true
	default:
		return 0, 0, false
	}
}

func (g *gate) admitLocked() Counts {
	g.secondCount++
	g.hourCount++
	g.dayCount++
	return g.countsLocked()
}

func (g *gate) countsLocked() Counts {
	return Counts{
		Second:      g.secondCount,
		Hour:        g.hourCount,
		Day:         g.dayCount,
		SecondStart: g.secondStart,
		HourStart:   g.hourStart,
		DayStart:    g.dayStart,
	}
}

func (g *gate) windowStart(w Window) time.Time {
	switch w {
	case WindowSecond:
		return g.secondStart
	case WindowHour:
		return g.hourStart
	default:
		return g.dayStart
	}
}

func clampWait(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

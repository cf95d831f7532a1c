package window

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
	"github.com/vnykmshr/sendgate/pkg/common/validation"
)

// Default ceilings applied when a Config field is left at zero.
const (
	DefaultMaxPerSecond = 10
	DefaultMaxPerHour   = 1000
	DefaultMaxPerDay    = 10000
)

// Gate admits outgoing sends under three independent fixed windows
// (one second, one hour, one day). A caller that would exceed any ceiling
// is stalled until the limiting window has rolled over; it is never rejected
// by the blocking operations.
type Gate interface {
	// Admit blocks until the send may proceed. It cannot be canceled.
	Admit()

	// Wait blocks until the send may proceed or ctx is done. On
	// cancellation it returns ctx.Err() and nothing is counted.
	Wait(ctx context.Context) error

	// TryAdmit admits the send if no ceiling is reached and returns nil.
	// Otherwise it returns a *RateLimitError and counts nothing.
	TryAdmit() error

	// Counts returns the current window counters and window starts.
	Counts() Counts

	// Limits returns the configured ceilings.
	Limits() Limits
}

// Window identifies one of the three accounting windows.
type Window int

const (
	// WindowSecond is the one second window.
	WindowSecond Window = iota
	// WindowHour is the one hour window.
	WindowHour
	// WindowDay is the one day window.
	WindowDay
)

// Duration returns the nominal length of the window.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowSecond:
		return time.Second
	case WindowHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

func (w Window) String() string {
	switch w {
	case WindowSecond:
		return "second"
	case WindowHour:
		return "hour"
	case WindowDay:
		return "day"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// Counts is a point-in-time view of the gate's counters.
type Counts struct {
	Second      int
	Hour        int
	Day         int
	SecondStart time.Time
	HourStart   time.Time
	DayStart    time.Time
}

// Limits holds the configured ceilings.
type Limits struct {
	PerSecond int
	PerHour   int
	PerDay    int
}

// RateLimitError is returned by TryAdmit when a ceiling has been reached.
type RateLimitError struct {
	Window     Window
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: per-%s limit reached, retry after %v", e.Window, e.RetryAfter)
}

// Unwrap returns errors.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return sgerrors.ErrRateLimited
}

// Clock provides the current time and timers. It can be mocked for testing.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// After waits for d on the system clock.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Config holds configuration options for creating a new Gate.
type Config struct {
	// MaxPerSecond is the ceiling for the one second window. Zero means DefaultMaxPerSecond.
	MaxPerSecond int

	// MaxPerHour is the ceiling for the one hour window. Zero means DefaultMaxPerHour.
	MaxPerHour int

	// MaxPerDay is the ceiling for the one day window. Zero means DefaultMaxPerDay.
	MaxPerDay int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// Logger receives a warning each time a caller is stalled. If nil, logging is disabled.
	Logger *zap.Logger
}

// New creates a gate with the default ceilings of 10/s, 1000/h and 10000/day.
func New() (Gate, error) {
	return NewWithConfigSafe(Config{})
}

// NewSafe creates a gate with explicit ceilings. All three must be positive.
func NewSafe(perSecond, perHour, perDay int) (Gate, error) {
	if err := validation.ValidatePositive("window", "max_per_second", perSecond); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("window", "max_per_hour", perHour); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("window", "max_per_day", perDay); err != nil {
		return nil, err
	}

	return NewWithConfigSafe(Config{
		MaxPerSecond: perSecond,
		MaxPerHour:   perHour,
		MaxPerDay:    perDay,
	})
}

// NewWithConfigSafe creates a gate from config, returning a
// *errors.ValidationError for negative ceilings.
func NewWithConfigSafe(config Config) (Gate, error) {
	g, err := newGate(config)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func newGate(config Config) (*gate, error) {
	config, err := applyDefaults(config)
	if err != nil {
		return nil, err
	}

	now := config.Clock.Now()
	return &gate{
		maxPerSecond: config.MaxPerSecond,
		maxPerHour:   config.MaxPerHour,
		maxPerDay:    config.MaxPerDay,
		secondStart:  now,
		hourStart:    now,
		dayStart:     now,
		clock:        config.Clock,
		logger:       config.Logger,
	}, nil
}

func applyDefaults(config Config) (Config, error) {
	fields := []struct {
		name  string
		value *int
		def   int
	}{
		{"max_per_second", &config.MaxPerSecond, DefaultMaxPerSecond},
		{"max_per_hour", &config.MaxPerHour, DefaultMaxPerHour},
		{"max_per_day", &config.MaxPerDay, DefaultMaxPerDay},
	}

	for _, f := range fields {
		if *f.value == 0 {
			*f.value = f.def
			continue
		}
		if err := validation.ValidatePositive("window", f.name, *f.value); err != nil {
			return config, err
		}
	}

	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return config, nil
}

package delivery

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/sendgate/pkg/metrics"
)

// Clock supplies the completion time recorded for successful sends.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config configures a Tracker.
type Config struct {
	// Clock defaults to the system clock.
	Clock Clock

	// Logger receives bounce and spam report warnings. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics mirrors every record into Prometheus counters when set.
	Metrics *metrics.Registry
}

// Tracker records delivery outcomes. It is safe for concurrent use.
//
// TotalSent always equals Successful + Failed. Bounces and spam reports are
// counted separately and never affect TotalSent.
type Tracker struct {
	clock   Clock
	logger  *zap.Logger
	metrics *metrics.Registry

	mu            sync.Mutex
	totalSent     int
	successful    int
	failed        int
	bounces       int
	spamReports   int
	deliveryTimes []time.Time
	failures      map[string]int
}

// New creates a Tracker with default configuration.
func New() *Tracker {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a Tracker with the given configuration.
func NewWithConfig(cfg Config) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Tracker{
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		failures: make(map[string]int),
	}
}

// RecordSuccess records a successful send to recipient.
func (t *Tracker) RecordSuccess(recipient string) {
	now := t.clock.Now()

	t.mu.Lock()
	t.totalSent++
	t.successful++
	t.deliveryTimes = append(t.deliveryTimes, now)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.DeliveryAttempts.WithLabelValues("success").Inc()
	}
}

// RecordFailure records a failed send to recipient. The error description
// is used verbatim as the failure histogram key.
func (t *Tracker) RecordFailure(recipient, errorDescription string) {
	t.mu.Lock()
	t.totalSent++
	t.failed++
	t.failures[errorDescription]++
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.DeliveryAttempts.WithLabelValues("failure").Inc()
	}
}

// RecordBounce records a bounce reported for recipient.
func (t *Tracker) RecordBounce(recipient, bounceType string) {
	t.mu.Lock()
	t.bounces++
	t.mu.Unlock()

	t.logger.Warn("bounce recorded",
		zap.String("recipient", recipient),
		zap.String("bounce_type", bounceType))

	if t.metrics != nil {
		t.metrics.DeliveryBounces.WithLabelValues(bounceType).Inc()
	}
}

// RecordSpamReport records a spam report from recipient.
func (t *Tracker) RecordSpamReport(recipient string) {
	t.mu.Lock()
	t.spamReports++
	t.mu.Unlock()

	t.logger.Warn("spam report recorded", zap.String("recipient", recipient))

	if t.metrics != nil {
		t.metrics.DeliverySpamReports.Inc()
	}
}

// Snapshot returns a point-in-time copy of all counters. The returned value
// shares no memory with the tracker.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		TotalSent:     t.totalSent,
		Successful:    t.successful,
		Failed:        t.failed,
		Bounces:       t.bounces,
		SpamReports:   t.spamReports,
		DeliveryTimes: make([]time.Time, len(t.deliveryTimes)),
		Failures:      make(map[string]int, len(t.failures)),
	}
	copy(s.DeliveryTimes, t.deliveryTimes)
	for k, v := range t.failures {
		s.Failures[k] = v
	}
	return s
}

// Persist writes the current snapshot to sink as an indented JSON document.
// Any failure is returned as a *PersistenceError.
func (t *Tracker) Persist(ctx context.Context, sink Sink) error {
	snap := t.Snapshot()

	err := persist(ctx, snap, sink)
	if t.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		t.metrics.DeliveryPersists.WithLabelValues(result).Inc()
	}
	if err != nil {
		return err
	}

	t.logger.Debug("delivery metrics persisted",
		zap.String("destination", sink.Destination()),
		zap.Int("total_sent", snap.TotalSent))
	return nil
}

// PersistFile writes the current snapshot to the file at path.
func (t *Tracker) PersistFile(path string) error {
	return t.Persist(context.Background(), FileSink{Path: path})
}

func persist(ctx context.Context, snap Snapshot, sink Sink) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return &PersistenceError{Destination: sink.Destination(), Err: err}
	}
	if err := sink.Write(ctx, data); err != nil {
		return &PersistenceError{Destination: sink.Destination(), Err: err}
	}
	return nil
}

package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
	"github.com/vnykmshr/sendgate/pkg/delivery"
	"github.com/vnykmshr/sendgate/pkg/metrics"
	"github.com/vnykmshr/sendgate/pkg/ratelimit/window"
	"github.com/vnykmshr/sendgate/pkg/scheduling/workerpool"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result reports the outcome of one send.
type Result struct {
	Status     string `json:"status"`
	Recipient  string `json:"recipient"`
	MessageID  string `json:"message_id,omitempty"`
	SMTPServer string `json:"smtp_server,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Options supplies the collaborators of a Sender. Nil fields get defaults.
type Options struct {
	// Gate admits each send. Defaults to a gate with default ceilings.
	Gate window.Gate

	// Transport delivers messages. Defaults to an SMTPTransport for the config,
	// recording its connection cap in Metrics.
	Transport Transport

	// Tracker records outcomes. Defaults to a new tracker.
	Tracker *delivery.Tracker

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics instruments the batch worker pool and the default transport
	// when set.
	Metrics *metrics.Registry

	// Now supplies header timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Sender runs the send path: admission, message construction, transport,
// outcome recording.
type Sender struct {
	cfg       Config
	gate      window.Gate
	transport Transport
	tracker   *delivery.Tracker
	logger    *zap.Logger
	metrics   *metrics.Registry
	now       func() time.Time
}

// NewSender validates cfg and wires the collaborators in opts.
func NewSender(cfg Config, opts Options) (*Sender, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sender{
		cfg:       cfg,
		gate:      opts.Gate,
		transport: opts.Transport,
		tracker:   opts.Tracker,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.gate == nil {
		gate, err := window.NewWithConfigSafe(window.Config{Logger: s.logger})
		if err != nil {
			return nil, err
		}
		s.gate = gate
	}
	if s.transport == nil {
		transport, err := NewSMTPTransportWithRegistry(cfg, s.metrics)
		if err != nil {
			return nil, err
		}
		s.transport = transport
	}
	if s.tracker == nil {
		s.tracker = delivery.NewWithConfig(delivery.Config{Logger: s.logger})
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// Tracker returns the tracker outcomes are recorded in.
func (s *Sender) Tracker() *delivery.Tracker {
	return s.tracker
}

// Gate returns the gate sends are admitted through.
func (s *Sender) Gate() window.Gate {
	return s.gate
}

// Send delivers one email. It blocks while the gate stalls. Build and
// transport failures are recorded in the tracker and reported in the
// result; a send abandoned because ctx ended while waiting for admission
// is reported but not recorded, since nothing was attempted.
func (s *Sender) Send(ctx context.Context, email Email) Result {
	log := s.logger.With(zap.String("recipient", email.To))

	if err := s.gate.Wait(ctx); err != nil {
		log.Warn("send abandoned while waiting for admission", zap.Error(err))
		return Result{Status: StatusError, Recipient: email.To, Error: err.Error()}
	}

	msg, messageID, err := Build(s.cfg, email, s.now())
	if err != nil {
		return s.fail(log, email.To, err)
	}

	if err := s.transport.Send(ctx, msg); err != nil {
		return s.fail(log, email.To, err)
	}

	s.tracker.RecordSuccess(email.To)
	log.Info("email sent",
		zap.String("message_id", messageID),
		zap.String("smtp_server", s.cfg.Host))

	return Result{
		Status:     StatusSuccess,
		Recipient:  email.To,
		MessageID:  messageID,
		SMTPServer: s.cfg.Host,
	}
}

func (s *Sender) fail(log *zap.Logger, to string, err error) Result {
	desc := err.Error()
	s.tracker.RecordFailure(to, desc)
	log.Error("email send failed", zap.Error(err), zap.Bool("retryable", sgerrors.IsRetryable(err)))
	return Result{Status: StatusError, Recipient: to, Error: desc}
}

// SendBatch sends emails concurrently on workers goroutines, all admitted by
// the same gate. Results are returned in the order of emails.
func (s *Sender) SendBatch(ctx context.Context, emails []Email, workers int) ([]Result, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(emails) {
		workers = len(emails)
	}

	results := make([]Result, len(emails))

	pool, err := workerpool.NewWithRegistry(workerpool.Config{
		WorkerCount:     workers,
		QueueSize:       len(emails),
		BufferedResults: true,
	}, "batch", s.metrics)
	if err != nil {
		return nil, err
	}

	var submitErr error
	for i, email := range emails {
		i, email := i, email
		task := workerpool.TaskFunc(func(ctx context.Context) error {
			results[i] = s.Send(ctx, email)
			if results[i].Status != StatusSuccess {
				return fmt.Errorf("send to %s: %s", email.To, results[i].Error)
			}
			return nil
		})
		if err := pool.SubmitWithContext(ctx, task); err != nil {
			submitErr = err
			break
		}
	}

	done := pool.Shutdown()
	failed := 0
	for r := range pool.Results() {
		if r.Error == nil {
			continue
		}
		failed++
		var perr *workerpool.PanicError
		if errors.As(r.Error, &perr) {
			s.logger.Error("batch send panicked",
				zap.Any("panic", perr.Value),
				zap.ByteString("stack", perr.Stack))
		}
	}
	<-done

	for i := range results {
		if results[i].Status == "" {
			results[i] = Result{Status: StatusError, Recipient: emails[i].To, Error: "not sent"}
		}
	}

	s.logger.Info("batch finished",
		zap.Int("total", len(emails)),
		zap.Int("failed", failed),
		zap.Int("workers", workers))

	return results, submitErr
}

package mail

import (
	"context"
	"errors"
	"fmt"
	"os"

	gomail "github.com/wneessen/go-mail"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
	"github.com/vnykmshr/sendgate/pkg/metrics"
	"github.com/vnykmshr/sendgate/pkg/ratelimit/concurrency"
)

// Transport delivers a built message.
type Transport interface {
	Send(ctx context.Context, msg *gomail.Msg) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg *gomail.Msg) error

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, msg *gomail.Msg) error {
	return f(ctx, msg)
}

// SMTPTransport sends messages over SMTP with STARTTLS and PLAIN
// authentication. Each Send uses its own connection, so one transport can
// be shared by concurrent senders. Config.MaxConnections bounds how many of
// those connections are open at once.
type SMTPTransport struct {
	host  string
	opts  []gomail.Option
	conns concurrency.Limiter
}

// NewSMTPTransport validates cfg and returns a transport for it.
func NewSMTPTransport(cfg Config) (*SMTPTransport, error) {
	return NewSMTPTransportWithRegistry(cfg, nil)
}

// NewSMTPTransportWithRegistry is like NewSMTPTransport but exports the
// connection cap's held and waiting slots to registry when both are set.
func NewSMTPTransportWithRegistry(cfg Config, registry *metrics.Registry) (*SMTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	// Fail early on options go-mail rejects.
	if _, err := gomail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("smtp transport: %w", err)
	}

	t := &SMTPTransport{host: cfg.Host, opts: opts}
	switch {
	case cfg.MaxConnections > 0 && registry != nil:
		conns, err := concurrency.NewWithRegistry(cfg.MaxConnections, "smtp", registry)
		if err != nil {
			return nil, err
		}
		t.conns = conns
	case cfg.MaxConnections > 0:
		conns, err := concurrency.NewSafe(cfg.MaxConnections)
		if err != nil {
			return nil, err
		}
		t.conns = conns
	}
	return t, nil
}

// Send dials the server, delivers msg and closes the connection. With a
// connection cap it first waits for a free slot. Deadline failures match
// errors.ErrTimeout.
func (t *SMTPTransport) Send(ctx context.Context, msg *gomail.Msg) error {
	if t.conns != nil {
		if err := t.conns.Acquire(ctx); err != nil {
			return timeout(sgerrors.NewOperationError("mail", "acquire connection", err).WithContext(t.host))
		}
		defer t.conns.Release()
	}

	client, err := gomail.NewClient(t.host, t.opts...)
	if err != nil {
		return fmt.Errorf("smtp transport: %w", err)
	}
	return timeout(client.DialAndSendWithContext(ctx, msg))
}

func timeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %w", sgerrors.ErrTimeout, err)
	}
	return err
}

// Host returns the SMTP server name.
func (t *SMTPTransport) Host() string {
	return t.host
}

// Connections returns the connection cap, or nil when there is none.
func (t *SMTPTransport) Connections() concurrency.Limiter {
	return t.conns
}

func tlsPolicy(policy string) gomail.TLSPolicy {
	switch policy {
	case TLSOpportunistic:
		return gomail.TLSOpportunistic
	case TLSNone:
		return gomail.NoTLS
	default:
		return gomail.TLSMandatory
	}
}

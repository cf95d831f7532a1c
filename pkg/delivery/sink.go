package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	sgerrors "github.com/vnykmshr/sendgate/pkg/common/errors"
)

// Sink is a destination for persisted snapshots.
type Sink interface {
	// Write stores one complete snapshot document, replacing any previous one.
	Write(ctx context.Context, data []byte) error

	// Destination describes where the sink writes, for logs and errors.
	Destination() string
}

// PersistenceError reports a snapshot that could not be written.
// It matches errors.ErrPersistence and the underlying cause through errors.Is.
type PersistenceError struct {
	Destination string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist delivery metrics to %s: %v", e.Destination, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{sgerrors.ErrPersistence, e.Err}
}

// DefaultFileMode is the permission used by FileSink when Mode is zero.
const DefaultFileMode os.FileMode = 0o644

// FileSink writes snapshots to a file, truncating it on every write.
type FileSink struct {
	Path string
	Mode os.FileMode
}

func (s FileSink) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode := s.Mode
	if mode == 0 {
		mode = DefaultFileMode
	}
	return os.WriteFile(s.Path, data, mode)
}

func (s FileSink) Destination() string {
	return s.Path
}

// WriterSink writes snapshots to an io.Writer. Successive writes are
// separated by a newline.
type WriterSink struct {
	W    io.Writer
	Name string
}

func (s WriterSink) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.W.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (s WriterSink) Destination() string {
	if s.Name == "" {
		return "writer"
	}
	return s.Name
}

// RedisSink stores snapshots as a single Redis string value.
type RedisSink struct {
	// Client is the Redis connection used for writes.
	Client redis.UniversalClient

	// Key is the Redis key holding the latest snapshot.
	Key string

	// TTL expires the key when positive. Zero keeps it forever.
	TTL time.Duration

	// Timeout bounds each Redis operation. Defaults to 500ms.
	Timeout time.Duration
}

const defaultRedisTimeout = 500 * time.Millisecond

func (s RedisSink) Write(ctx context.Context, data []byte) error {
	if s.Client == nil {
		return fmt.Errorf("redis sink: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	if err := s.Client.Set(ctx, s.Key, data, s.TTL).Err(); err != nil {
		return sgerrors.NewOperationError("delivery", "redis SET", err).WithContext(s.Key)
	}
	return nil
}

// Load reads the snapshot stored under Key.
func (s RedisSink) Load(ctx context.Context) (Snapshot, error) {
	if s.Client == nil {
		return Snapshot{}, fmt.Errorf("redis sink: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	data, err := s.Client.Get(ctx, s.Key).Bytes()
	if err != nil {
		return Snapshot{}, sgerrors.NewOperationError("delivery", "redis GET", err).WithContext(s.Key)
	}

	var snap Snapshot
	if err := snap.UnmarshalJSON(data); err != nil {
		return Snapshot{}, fmt.Errorf("decode delivery snapshot: %w", err)
	}
	return snap, nil
}

func (s RedisSink) Destination() string {
	return "redis:" + s.Key
}

func (s RedisSink) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultRedisTimeout
}

var (
	_ Sink = FileSink{}
	_ Sink = WriterSink{}
	_ Sink = RedisSink{}
)

package delivery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/sendgate/internal/testutil"
	"github.com/vnykmshr/sendgate/pkg/scheduling/scheduler"
)

func TestNewFlusher_Validation(t *testing.T) {
	tr := New()
	sink := WriterSink{W: testutil.NewMockWriter()}

	_, err := NewFlusher(nil, sink, FlusherConfig{Schedule: "@hourly"})
	testutil.AssertError(t, err)

	_, err = NewFlusher(tr, nil, FlusherConfig{Schedule: "@hourly"})
	testutil.AssertError(t, err)

	_, err = NewFlusher(tr, sink, FlusherConfig{Schedule: "every now and then"})
	testutil.AssertError(t, err)
}

func TestFlusher_FlushAndStop(t *testing.T) {
	tr := New()
	path := filepath.Join(t.TempDir(), "metrics.json")

	f, err := NewFlusher(tr, FileSink{Path: path}, FlusherConfig{Schedule: "@hourly"})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, f.Start())

	tr.RecordSuccess("a@example.com")
	testutil.AssertNoError(t, f.Flush(context.Background()))

	got, err := ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.TotalSent, 1)

	tr.RecordFailure("b@example.com", "A")

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, f.Stop(ctx))

	got, err = ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.TotalSent, 2)
	testutil.AssertEqual(t, got.Failures["A"], 1)
}

func TestFlusher_Periodic(t *testing.T) {
	tr := New()
	w := testutil.NewMockWriter()

	f, err := NewFlusher(tr, WriterSink{W: w}, FlusherConfig{Schedule: "@every 1s"})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, f.Start())

	testutil.Eventually(t, func() bool {
		return w.WriteCount() >= 1
	}, 4*time.Second, 20*time.Millisecond)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, f.Stop(ctx))
}

func TestFlusher_SharedScheduler(t *testing.T) {
	s := scheduler.New()
	defer func() { <-s.Stop() }()

	tr := New()
	f, err := NewFlusher(tr, WriterSink{W: testutil.NewMockWriter()}, FlusherConfig{
		Schedule:  "0 */5 * * * *",
		Scheduler: s,
	})
	testutil.AssertNoError(t, err)

	_, ok := s.Next(flushJobID)
	testutil.AssertEqual(t, ok, true)

	testutil.AssertNoError(t, f.Stop(context.Background()))
	_, ok = s.Next(flushJobID)
	testutil.AssertEqual(t, ok, false)
}

func TestFlusher_FailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	w := testutil.NewMockWriter()
	w.SetAlwaysError(errors.New("broken pipe"))

	f, err := NewFlusher(New(), WriterSink{W: w}, FlusherConfig{
		Schedule: "@hourly",
		Logger:   zap.New(core),
	})
	testutil.AssertNoError(t, err)

	err = f.Flush(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Flush() = %v, want *PersistenceError", err)
	}
	testutil.AssertEqual(t, logs.FilterMessage("delivery metrics flush failed").Len(), 1)

	testutil.AssertError(t, f.Stop(context.Background()))
}

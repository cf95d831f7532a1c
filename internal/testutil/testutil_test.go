package testutil

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	var counter int64
	go func() {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt64(&counter, 1)
	}()

	Eventually(t, func() bool {
		return atomic.LoadInt64(&counter) == 1
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestWaitForInt64(t *testing.T) {
	var value int64

	go func() {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt64(&value, 100)
	}()

	WaitForInt64(t, &value, 100, 500*time.Millisecond)
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	AssertEqual(t, clock.Now(), start)

	clock.Advance(time.Minute)
	AssertEqual(t, clock.Now(), start.Add(time.Minute))

	fired := <-clock.After(time.Second)
	AssertEqual(t, fired, start.Add(time.Minute+time.Second))
	AssertEqual(t, clock.Now(), fired)

	<-clock.After(0)
	sleeps := clock.Sleeps()
	AssertEqual(t, len(sleeps), 2)
	AssertEqual(t, sleeps[0], time.Second)
	AssertEqual(t, sleeps[1], time.Duration(0))

	clock.Set(start)
	AssertEqual(t, clock.Now(), start)
}

func TestMockWriter(t *testing.T) {
	w := NewMockWriter()

	n, err := w.Write([]byte("hello"))
	AssertNoError(t, err)
	AssertEqual(t, n, 5)
	AssertEqual(t, w.String(), "hello")

	boom := errors.New("disk full")
	w.SetAlwaysError(boom)
	_, err = w.Write([]byte("world"))
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	AssertEqual(t, w.WriteCount(), 2)
	AssertEqual(t, string(w.Bytes()), "hello")
}

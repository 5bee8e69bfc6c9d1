package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func startWatchdog(timeout time.Duration) (*watchdog, *atomic.Int32, chan struct{}) {
	var fired atomic.Int32
	cancel := func(cause error) {
		if errors.Is(cause, ErrIdleTimeout) {
			fired.Add(1)
		}
	}
	w := newWatchdog(timeout, cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run()
	}()
	return w, &fired, done
}

func TestWatchdogFiresOnceWhenIdle(t *testing.T) {
	t.Parallel()

	w, fired, done := startWatchdog(30 * time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	w.close()
	<-done

	if got := fired.Load(); got != 1 {
		t.Fatalf("expected exactly one cancellation, got %d", got)
	}
	if !w.fired {
		t.Fatal("expected fired state")
	}
}

func TestWatchdogResetByTraffic(t *testing.T) {
	t.Parallel()

	w, fired, done := startWatchdog(100 * time.Millisecond)
	for range 15 {
		w.report(10)
		time.Sleep(20 * time.Millisecond)
	}
	w.close()
	<-done

	if got := fired.Load(); got != 0 {
		t.Fatalf("watchdog fired %d times despite steady traffic", got)
	}
	if w.total != 150 {
		t.Fatalf("expected total 150, got %d", w.total)
	}
}

func TestWatchdogDisabled(t *testing.T) {
	t.Parallel()

	w, fired, done := startWatchdog(0)
	time.Sleep(50 * time.Millisecond)
	w.report(7)
	w.close()
	<-done

	if fired.Load() != 0 {
		t.Fatal("disabled watchdog fired")
	}
	if w.total != 7 {
		t.Fatalf("expected total 7, got %d", w.total)
	}
}

func TestWatchdogDrainsAfterFiring(t *testing.T) {
	t.Parallel()

	w, fired, done := startWatchdog(10 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	// More reports than the backlog must not block once fired.
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		for range reportBacklog * 4 {
			w.report(1)
		}
	}()
	select {
	case <-reported:
	case <-time.After(2 * time.Second):
		t.Fatal("report blocked after watchdog fired")
	}
	w.close()
	<-done

	if fired.Load() != 1 {
		t.Fatalf("expected one cancellation, got %d", fired.Load())
	}
	if w.total != reportBacklog*4 {
		t.Fatalf("expected total %d, got %d", reportBacklog*4, w.total)
	}
}

func TestWatchdogCancelsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	w := newWatchdog(20*time.Millisecond, cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run()
	}()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled")
	}
	if !errors.Is(context.Cause(ctx), ErrIdleTimeout) {
		t.Fatalf("expected ErrIdleTimeout cause, got %v", context.Cause(ctx))
	}
	w.close()
	<-done
}

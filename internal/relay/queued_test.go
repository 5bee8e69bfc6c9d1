package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

func TestQueuedBackpressure(t *testing.T) {
	t.Parallel()

	const depth = 4

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	// feed -> src is what the relay reads; dst -> drain is what it writes.
	// Nothing reads drain at first, so the writer stalls on its first chunk.
	feed, src := net.Pipe()
	dst, drain := net.Pipe()
	defer feed.Close()
	defer drain.Close()

	r := New(Config{Strategy: Queued, ChunkSize: 16, QueueDepth: depth})
	wd := newWatchdog(0, cancel)
	wdDone := make(chan struct{})
	go func() {
		defer close(wdDone)
		wd.run()
	}()
	d := &direction{src: src, dst: dst, wd: wd}

	errc := make(chan error, 1)
	go func() { errc <- r.copyQueued(ctx, d) }()

	// Each one-byte write returns once the reader has consumed it. The
	// reader stops consuming after the stalled writer's chunk, a full
	// queue, and the chunk it is trying to enqueue.
	accepted := 0
	for i := range 3 * depth {
		_ = feed.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if _, err := feed.Write([]byte{byte(i)}); err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				t.Fatal(err)
			}
			break
		}
		accepted++
	}
	if want := depth + 2; accepted != want {
		t.Fatalf("reader accepted %d chunks with a stalled writer, want %d", accepted, want)
	}

	// Draining the writer lets the reader resume.
	got := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(drain)
		got <- b
	}()

	_ = feed.SetWriteDeadline(time.Time{})
	const total = 3 * depth
	for i := accepted; i < total; i++ {
		if _, err := feed.Write([]byte{byte(i)}); err != nil {
			t.Fatalf("write %d after drain: %v", i, err)
		}
	}
	_ = feed.Close()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued copy did not finish after EOF")
	}

	b := <-got
	if len(b) != total {
		t.Fatalf("drained %d bytes, want %d", len(b), total)
	}
	for i, c := range b {
		if int(c) != i {
			t.Fatalf("byte %d out of order: got %d", i, c)
		}
	}

	wd.close()
	<-wdDone
	if d.n != total || wd.total != total {
		t.Fatalf("counted %d bytes, watchdog %d, want %d", d.n, wd.total, total)
	}
}

func TestQueuedWriterFailureStopsReader(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	feed, src := net.Pipe()
	dst, drain := net.Pipe()
	defer feed.Close()
	// The writer's first write fails.
	_ = drain.Close()

	r := New(Config{Strategy: Queued, ChunkSize: 16, QueueDepth: 2})
	wd := newWatchdog(0, cancel)
	go wd.run()
	defer wd.close()
	d := &direction{src: src, dst: dst, wd: wd}

	errc := make(chan error, 1)
	go func() { errc <- r.copyQueued(ctx, d) }()

	if _, err := feed.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Fatalf("expected the writer's error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader kept running after the writer failed")
	}
}

package relay

import (
	"context"
	"time"
)

// reportBacklog lets directions report without waiting on the watchdog
// for every write.
const reportBacklog = 64

// watchdog sums the byte counts reported by every direction of one relay
// and cancels the relay with ErrIdleTimeout once no report has arrived for
// timeout. It fires at most once.
type watchdog struct {
	timeout time.Duration
	reports chan int64
	cancel  context.CancelCauseFunc

	// Owned by run until it returns.
	total int64
	fired bool
}

func newWatchdog(timeout time.Duration, cancel context.CancelCauseFunc) *watchdog {
	return &watchdog{
		timeout: timeout,
		reports: make(chan int64, reportBacklog),
		cancel:  cancel,
	}
}

func (w *watchdog) report(n int) {
	if n > 0 {
		w.reports <- int64(n)
	}
}

// close tells run that every direction has finished. No report may follow.
func (w *watchdog) close() {
	close(w.reports)
}

// run consumes reports until close is called. It keeps draining after
// firing so late reports from cancelled directions never block.
func (w *watchdog) run() {
	var (
		timer *time.Timer
		idle  <-chan time.Time
	)
	if w.timeout > 0 {
		timer = time.NewTimer(w.timeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case n, ok := <-w.reports:
			if !ok {
				return
			}
			w.total += n
			if timer != nil && !w.fired {
				timer.Reset(w.timeout)
			}
		case <-idle:
			w.fired = true
			idle = nil
			w.cancel(ErrIdleTimeout)
		}
	}
}

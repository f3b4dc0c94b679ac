package telemetry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Watchdog polls engine liveness at Interval while Running and invokes
// OnDeath exactly once per observed death, per spec.md §4.8. It does not
// itself perform the supervised restart or state transition — those are
// the lifecycle worker's job, since only it may touch the serialization
// lock and the revert ledger; Watchdog only detects and notifies.
type Watchdog struct {
	Clock    clock.Clock
	Interval time.Duration
	IsAlive  func() bool
	OnDeath  func(ctx context.Context)
}

// Run blocks, checking IsAlive every Interval until ctx is cancelled or
// a death has been reported via OnDeath. The lifecycle worker is
// expected to cancel ctx (tearing this Watchdog down) once it has
// reacted to the death, and start a fresh Watchdog for the next Running
// period after a successful supervised restart.
func (w *Watchdog) Run(ctx context.Context) error {
	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.IsAlive == nil || w.IsAlive() {
				continue
			}
			if w.OnDeath != nil {
				w.OnDeath(ctx)
			}
			return nil
		}
	}
}

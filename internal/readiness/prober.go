// Package readiness implements the cancellable, bounded poll loop that
// decides whether a just-spawned AP engine is actually up: a primary
// control-socket PING, falling back to a process+interface+SSID check.
// Modeled as a plain function taking a clock.Clock so tests run instantly
// instead of sleeping — the "don't leak the coroutine primitive across
// the control-plane boundary" re-architecture of spec.md §9.
package readiness

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/openvr-net/hotspotd/internal/types"
)

// pollInterval is how often each probe attempt is retried while waiting
// for readiness, per spec.md §4.4.
const pollInterval = 100 * time.Millisecond

// PrimaryProbe answers one AP-control-channel PING attempt. It must
// return promptly (bounded by its own per-attempt deadline) — Prober
// wraps each call in a short timeout regardless of what the
// implementation does internally.
type PrimaryProbe func(ctx context.Context) (bool, error)

// FallbackCheck is the non-control-socket liveness check: at least one AP
// daemon process alive, the AP interface administratively up, reported as
// AP-typed by the kernel, and (if ssid != "") the advertised SSID
// matches.
type FallbackCheck func(ctx context.Context) (ok bool, failKind types.ErrorKind, err error)

// Prober runs the readiness poll loop.
type Prober struct {
	Clock clock.Clock
}

// New returns a Prober using the real wall clock.
func New() *Prober { return &Prober{Clock: clock.New()} }

// Await polls primary then fallback every ~100ms until one succeeds or
// timeout elapses. It never modifies host state. On timeout it returns
// ap_ready_timeout without having touched anything.
func (p *Prober) Await(ctx context.Context, timeout time.Duration, primary PrimaryProbe, fallback FallbackCheck) *types.LifecycleError {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	deadline := clk.Now().Add(timeout)
	ticker := clk.Ticker(pollInterval)
	defer ticker.Stop()

	attempt := func() (bool, types.ErrorKind, error) {
		pctx, cancel := context.WithTimeout(ctx, pollInterval*3)
		defer cancel()

		if primary != nil {
			if ok, _ := primary(pctx); ok {
				return true, "", nil
			}
		}
		if fallback != nil {
			ok, kind, err := fallback(pctx)
			if ok {
				return true, "", nil
			}
			return false, kind, err
		}
		return false, "", nil
	}

	if ok, _, _ := attempt(); ok {
		return nil
	}

	var lastKind types.ErrorKind
	for {
		select {
		case <-ctx.Done():
			return types.NewError(types.ErrAPReadyTimeout, "readiness wait cancelled", "", ctx.Err())
		case <-ticker.C:
			if clk.Now().After(deadline) {
				return timeoutError(lastKind)
			}
			ok, kind, _ := attempt()
			if ok {
				return nil
			}
			if kind != "" {
				lastKind = kind
			}
			if clk.Now().After(deadline) {
				return timeoutError(lastKind)
			}
		}
	}
}

func timeoutError(lastKind types.ErrorKind) *types.LifecycleError {
	switch lastKind {
	case types.ErrAPInterfaceNotUp:
		return types.NewError(types.ErrAPInterfaceNotUp, "AP interface never came up", "", nil)
	case types.ErrAPTypeMismatch:
		return types.NewError(types.ErrAPTypeMismatch, "interface never reported AP type", "", nil)
	case types.ErrSSIDNotAdvertised:
		return types.NewError(types.ErrSSIDNotAdvertised, "advertised SSID never matched", "", nil)
	default:
		return types.NewError(types.ErrAPReadyTimeout, "AP did not become ready within the configured timeout", "", nil)
	}
}

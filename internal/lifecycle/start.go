package lifecycle

import (
	"context"

	"github.com/openvr-net/hotspotd/internal/types"
	"github.com/openvr-net/hotspotd/pkg/log"
)

// maxStartAttempts bounds the fallback chain: spec.md §8 testable
// property 7, "at most 3 backend attempts".
const maxStartAttempts = 3

// Start advances Stopped -> Starting -> (Running | Error), running the
// fallback chain of spec.md §4.7 on recoverable failures. Concurrent
// Start calls while one is already in flight return lifecycle_busy
// without touching host state (S5); calling Start while Running returns
// already_running.
func (c *Core) Start(ctx context.Context, overrides *types.Config) types.LifecycleResult {
	correlationID := newCorrelationID()
	if !c.mu.TryLock() {
		return c.busyResult(correlationID)
	}
	defer c.mu.Unlock()

	if c.currentStatus().Phase == types.PhaseRunning {
		return c.result(true, types.ResultAlreadyRunning, correlationID, c.currentStatus())
	}

	return c.startLocked(ctx, overrides, correlationID)
}

func (c *Core) startLocked(ctx context.Context, overrides *types.Config, correlationID string) types.LifecycleResult {
	c.setPhase(types.PhaseStarting)

	cfg, err := c.Config.Load()
	if err != nil {
		return c.errorResult(correlationID, types.NewError(types.ErrInternal, "failed to load configuration", "", err))
	}
	if overrides != nil {
		cfg = *overrides
	}
	if errs := types.Validate(cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return c.errorResult(correlationID, &types.LifecycleError{
			Kind:   types.ErrConfigInvalid,
			Detail: &types.ErrorDetail{Title: "configuration failed validation", Errors: msgs},
		})
	}

	plan := newPlan(cfg)
	var fallbackReason string
	var warnings []string
	var lastErr *types.LifecycleError

	for attempt := 1; attempt <= maxStartAttempts; attempt++ {
		outcome := c.runAttempt(ctx, cfg, cfg.APAdapterIfname, plan, runDirFor(c.RunDir, attempt))
		if outcome.err == nil {
			status := outcome.status
			status.FallbackReason = fallbackReason
			status.LastOp = "start"
			status.LastCorrelationID = correlationID
			status.Warnings = append(status.Warnings, warnings...)
			c.publish(status)

			c.startSupervisors(cfg, c.handle, status.APInterface, c.supervisedRestart(cfg))

			resultCode := types.ResultStarted
			if attempt > 1 {
				resultCode = types.ResultStartedWithFallback
			}
			return c.result(true, resultCode, correlationID, status)
		}

		lastErr = outcome.err
		warnings = append(warnings, outcome.err.Error())
		log.Warnf("lifecycle: start attempt %d failed: %v", attempt, outcome.err)

		nextPlan, reason, retryable := fallbackFor(outcome.plan, outcome.err.Kind)
		if !retryable {
			break
		}
		plan = nextPlan
		fallbackReason = reason
	}

	lastErr.Warnings = warnings
	return c.errorResult(correlationID, lastErr)
}

// fallbackFor implements the retry table of spec.md §4.7 "Fallback chain
// on Starting". It returns the plan for the next attempt, the
// fallback_reason to publish, and whether a retry should happen at all.
func fallbackFor(p effectivePlan, kind types.ErrorKind) (effectivePlan, string, bool) {
	switch kind {
	case types.ErrHostapdInvalidCountryCodeFor80211d, types.ErrMissingBinary, types.ErrDependencyMissing:
		return p, "", false

	case types.ErrAPReadyTimeout:
		switch p.Band {
		case types.Band6GHz:
			return p.fallbackTo5GHz(), "ap_ready_timeout_6ghz", true
		case types.Band5GHz:
			return p.fallbackTo24GHz(), "ap_ready_timeout_5ghz", true
		default:
			return p, "", false
		}

	case types.ErrDriverRejectedChannel:
		if p.Band == types.Band5GHz {
			return p.fallbackTo24GHz(), "driver_rejected_channel_5ghz", true
		}
		if !p.NoVirt {
			return p.withNoVirt(), "driver_rejected_channel_no_virt", true
		}
		return p, "", false

	default:
		return p, "", false
	}
}

func (c *Core) errorResult(correlationID string, lerr *types.LifecycleError) types.LifecycleResult {
	status := c.currentStatus().Clone()
	status.Phase = types.PhaseError
	status.Running = false
	status.LastOp = "start"
	status.LastCorrelationID = correlationID
	status.LastError = string(lerr.Kind)
	status.LastErrorDetail = lerr.Detail
	status.Warnings = append(status.Warnings, lerr.Warnings...)
	c.publish(status)
	return types.LifecycleResult{
		OK:            false,
		ResultCode:    string(lerr.Kind),
		CorrelationID: correlationID,
		Data:          status,
	}
}

// supervisedRestart builds the watchdog's OnDeath callback: attempt one
// restart by re-running the start sequence with cfg, the Config the
// running engine was started from. The last effective plan (the band,
// channel and width reached after fallback) is not reused; the restart
// walks the fallback chain again from cfg. It runs outside the
// serialization lock's normal entry points, so
// it takes the lock itself like any other lifecycle operation.
func (c *Core) supervisedRestart(cfg types.Config) func(ctx context.Context) {
	return func(ctx context.Context) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.setPhase(types.PhaseStopping)
		c.teardownRunning(ctx)
		c.setPhase(types.PhaseStopped)

		correlationID := newCorrelationID()
		result := c.startLocked(ctx, &cfg, correlationID)
		if !result.OK {
			log.Errorf("lifecycle: supervised restart failed: %s", result.ResultCode)
		}
	}
}

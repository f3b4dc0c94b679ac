package lifecycle

import (
	"context"
	"os"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v3/process"

	"github.com/openvr-net/hotspotd/internal/firewall"
	"github.com/openvr-net/hotspotd/internal/types"
	"github.com/openvr-net/hotspotd/pkg/log"
)

// strayProcessNames are the binary basenames repair treats as "ours" for
// the purpose of killing stray instances not attributable to the current
// engine handle, per spec.md §4.7 repair pseudo-protocol.
var strayProcessNames = []string{"hostapd", "dnsmasq", "hotspotd-apd", "hotspotd-orchestrator"}

// stopGrace is the grace period given to a Running engine before
// SIGKILL, per spec.md §4.7 stop pseudo-protocol step 2.
const stopGrace = 3 * time.Second

// Stop advances Running -> Stopping -> Stopped. A stop arriving while a
// start is in progress waits for the serialization lock rather than
// racing it (spec.md §5) — Stop always takes the blocking Lock, never
// TryLock.
func (c *Core) Stop(ctx context.Context) types.LifecycleResult {
	correlationID := newCorrelationID()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentStatus().Phase == types.PhaseStopped {
		return c.result(true, types.ResultAlreadyStopped, correlationID, c.currentStatus())
	}

	c.setPhase(types.PhaseStopping)
	warnings := c.teardownRunning(ctx)

	status := &types.Status{
		Phase:             types.PhaseStopped,
		LastOp:            "stop",
		LastOpTS:          time.Now(),
		LastCorrelationID: correlationID,
		Warnings:          warnings,
	}
	c.publish(status)
	return c.result(true, types.ResultStopped, correlationID, status)
}

// teardownRunning stops the engine, reverts firewall and tuner state,
// and tears down the telemetry/watchdog supervisors. It is best-effort:
// every step runs regardless of earlier failures, and failures are
// collected as warnings rather than aborting, per the "revert never
// raises" propagation policy of spec.md §7.
func (c *Core) teardownRunning(ctx context.Context) []string {
	c.stopSupervisors()

	var warnings []string

	if c.handle != nil {
		if err := c.handle.Stop(ctx, stopGrace); err != nil {
			log.Warnf("lifecycle: engine stop: %v", err)
			warnings = append(warnings, "engine_stop_incomplete")
		}
		c.handle = nil
	}

	if c.firewallRec != nil {
		if errs := c.firewallRec.Revert(ctx, c.firewallTok); len(errs) > 0 {
			warnings = append(warnings, string(types.ErrFirewallRevertIncomplete))
		}
		c.firewallRec = nil
		c.firewallTok = firewall.RevertToken{}
	}

	if c.ledger != nil {
		if errs := c.ledger.DrainAll(); len(errs) > 0 {
			for range errs {
				warnings = append(warnings, string(types.ErrTuningPartiallyApplied))
			}
		}
		c.ledger = nil
	}

	return warnings
}

// Repair is equivalent to Stop from any state (Error included), plus
// best-effort cleanup of stray processes, the per-attempt runtime
// directories under RunDir, and firewall artifacts tagged with this
// daemon's identity, per spec.md §4.7.
func (c *Core) Repair(ctx context.Context) types.LifecycleResult {
	correlationID := newCorrelationID()
	c.mu.Lock()
	defer c.mu.Unlock()

	warnings := c.teardownRunning(ctx)

	killStrayProcesses()
	if c.RunDir != "" {
		for attempt := 1; attempt <= maxStartAttempts; attempt++ {
			_ = os.RemoveAll(runDirFor(c.RunDir, attempt))
		}
	}

	direct := firewall.DirectReconciler{IPTablesFallback: true}
	if errs := direct.Cleanup(ctx, DaemonTag); len(errs) > 0 {
		warnings = append(warnings, string(types.ErrFirewallRevertIncomplete))
	}
	zone := firewall.ZoneReconciler{}
	if errs := zone.Cleanup(ctx, DaemonTag); len(errs) > 0 {
		warnings = append(warnings, string(types.ErrFirewallRevertIncomplete))
	}

	status := &types.Status{
		Phase:             types.PhaseStopped,
		LastOp:            "repair",
		LastOpTS:          time.Now(),
		LastCorrelationID: correlationID,
		Warnings:          warnings,
	}
	c.publish(status)
	return c.result(true, types.ResultRepaired, correlationID, status)
}

// killStrayProcesses best-effort SIGKILLs any process whose name contains
// one of the engine's known binary names. It is only called
// from Repair, after teardownRunning has already stopped this daemon's
// own tracked engine handle — anything still matching here is a leak
// from a previous crashed attempt.
func killStrayProcesses() {
	procs, err := gopsproc.Processes()
	if err != nil {
		return
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		for _, known := range strayProcessNames {
			if strings.Contains(name, known) {
				_ = p.Kill()
				break
			}
		}
	}
}

// Restart is stop -> start under one continuous serialization window.
func (c *Core) Restart(ctx context.Context, overrides *types.Config) types.LifecycleResult {
	correlationID := newCorrelationID()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentStatus().Phase != types.PhaseStopped {
		c.setPhase(types.PhaseStopping)
		c.teardownRunning(ctx)
		c.setPhase(types.PhaseStopped)
	}

	return c.startLocked(ctx, overrides, correlationID)
}

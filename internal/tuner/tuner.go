// Package tuner applies and reverts the bounded set of host-level knobs
// spec.md §4.6 names: Wi-Fi power save, USB autosuspend, CPU governor,
// sysctl tunables, and CPU/IRQ affinity. Every applied knob records its
// prior value so it can be restored byte-for-byte on revert.
package tuner

import (
	"context"
	"fmt"

	"github.com/openvr-net/hotspotd/internal/types"
	"github.com/openvr-net/hotspotd/pkg/log"
)

// Plan is which knobs to apply, derived from Config's tuning toggles.
type Plan struct {
	Ifname                 string
	WifiPowerSaveDisable   bool
	USBAutosuspendDisable  bool
	CPUGovernorPerformance bool
	SysctlTuning           bool
	TCPLowLatency          bool
	CPUAffinityMask        string
	IRQAffinityMask        string
}

// PlanFromConfig builds a Plan from the persisted Config for the chosen
// adapter interface.
func PlanFromConfig(cfg types.Config, ifname string) Plan {
	return Plan{
		Ifname:                 ifname,
		WifiPowerSaveDisable:   cfg.WifiPowerSaveDisable,
		USBAutosuspendDisable:  cfg.USBAutosuspendDisable,
		CPUGovernorPerformance: cfg.CPUGovernorPerformance,
		SysctlTuning:           cfg.SysctlTuning || cfg.TCPLowLatency || cfg.MemoryTuning,
		TCPLowLatency:          cfg.TCPLowLatency,
		CPUAffinityMask:        cfg.CPUAffinityMask,
		IRQAffinityMask:        cfg.IRQAffinityMask,
	}
}

// Knob is one independently applicable/revertible host tuning. Each
// implementation captures its own prior value on Apply and restores it on
// the returned RevertAction's Undo.
type Knob interface {
	Name() string
	Apply(ctx context.Context) (types.RevertAction, error)
}

// Apply runs every knob the plan enables against ledger, collecting
// non-fatal failures as warnings rather than aborting — per §4.6,
// "Failures are non-fatal but emit a warning".
func Apply(ctx context.Context, plan Plan, ledger *types.RevertLedger) (warnings []string) {
	var knobs []Knob
	if plan.WifiPowerSaveDisable {
		knobs = append(knobs, wifiPowerSaveKnob{ifname: plan.Ifname})
	}
	if plan.USBAutosuspendDisable {
		knobs = append(knobs, usbAutosuspendKnob{ifname: plan.Ifname})
	}
	if plan.CPUGovernorPerformance {
		knobs = append(knobs, cpuGovernorKnob{})
	}
	if plan.SysctlTuning {
		knobs = append(knobs, sysctlKnob{lowLatency: plan.TCPLowLatency})
	}
	if plan.CPUAffinityMask != "" {
		knobs = append(knobs, affinityKnob{kind: "cpu", mask: plan.CPUAffinityMask})
	}
	if plan.IRQAffinityMask != "" {
		knobs = append(knobs, affinityKnob{kind: "irq", mask: plan.IRQAffinityMask, ifname: plan.Ifname})
	}

	for _, k := range knobs {
		action, err := k.Apply(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("tuning_partially_applied: %s: %v", k.Name(), err))
			log.Warnf("tuner: %s failed: %v", k.Name(), err)
			if action.Undo != nil {
				// A partially applied knob still restores what it changed.
				ledger.Push(action.Description, action.Undo)
			}
			continue
		}
		ledger.Push(action.Description, action.Undo)
	}
	return warnings
}

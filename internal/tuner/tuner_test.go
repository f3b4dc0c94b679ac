package tuner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openvr-net/hotspotd/internal/tuner"
	"github.com/openvr-net/hotspotd/internal/types"
)

func TestApplyNoopPlanLeavesLedgerEmpty(t *testing.T) {
	ledger := &types.RevertLedger{}
	warnings := tuner.Apply(context.Background(), tuner.Plan{Ifname: "wlan0"}, ledger)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, ledger.Len())
}

func TestApplyFailingKnobsProduceWarningsNotPanics(t *testing.T) {
	ledger := &types.RevertLedger{}
	plan := tuner.Plan{
		Ifname:                 "nonexistent-ifname-xyz",
		WifiPowerSaveDisable:   true,
		USBAutosuspendDisable:  true,
		CPUAffinityMask:        "zz", // invalid hex -> knob fails gracefully
	}
	warnings := tuner.Apply(context.Background(), plan, ledger)
	assert.NotEmpty(t, warnings)
	for _, w := range warnings {
		assert.Contains(t, w, "tuning_partially_applied")
	}
}

func TestPlanFromConfig(t *testing.T) {
	cfg := types.Defaults()
	cfg.WifiPowerSaveDisable = true
	cfg.TCPLowLatency = true
	plan := tuner.PlanFromConfig(cfg, "wlan0")
	assert.True(t, plan.WifiPowerSaveDisable)
	assert.True(t, plan.SysctlTuning, "tcp_low_latency should imply sysctl tuning")
}

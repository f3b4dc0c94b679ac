//go:build !linux

package tuner

import (
	"context"
	"fmt"

	"github.com/openvr-net/hotspotd/internal/types"
)

type wifiPowerSaveKnob struct{ ifname string }

func (wifiPowerSaveKnob) Name() string { return "wifi_power_save" }
func (wifiPowerSaveKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	return types.RevertAction{}, fmt.Errorf("not implemented on this platform")
}

type usbAutosuspendKnob struct{ ifname string }

func (usbAutosuspendKnob) Name() string { return "usb_autosuspend" }
func (usbAutosuspendKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	return types.RevertAction{}, fmt.Errorf("not implemented on this platform")
}

type cpuGovernorKnob struct{}

func (cpuGovernorKnob) Name() string { return "cpu_governor" }
func (cpuGovernorKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	return types.RevertAction{}, fmt.Errorf("not implemented on this platform")
}

type sysctlKnob struct{ lowLatency bool }

func (sysctlKnob) Name() string { return "sysctl_tuning" }
func (sysctlKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	return types.RevertAction{}, fmt.Errorf("not implemented on this platform")
}

type affinityKnob struct {
	kind   string
	mask   string
	ifname string
}

func (a affinityKnob) Name() string { return a.kind + "_affinity" }
func (affinityKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	return types.RevertAction{}, fmt.Errorf("not implemented on this platform")
}

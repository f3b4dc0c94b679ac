//go:build linux

package tuner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	sysctl "github.com/lorenzosaino/go-sysctl"
	"golang.org/x/sys/unix"

	"github.com/openvr-net/hotspotd/internal/types"
)

// wifiPowerSaveKnob disables 802.11 power save on the chosen radio via
// `iw`, remembering whatever state it found so Undo can restore it.
type wifiPowerSaveKnob struct{ ifname string }

func (wifiPowerSaveKnob) Name() string { return "wifi_power_save" }

func (k wifiPowerSaveKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	prior, err := iwGetPowerSave(ctx, k.ifname)
	if err != nil {
		return types.RevertAction{}, err
	}
	if err := iwSetPowerSave(ctx, k.ifname, "off"); err != nil {
		return types.RevertAction{}, err
	}
	return types.RevertAction{
		Description: fmt.Sprintf("restore power_save=%s on %s", prior, k.ifname),
		Undo:        func() error { return iwSetPowerSave(context.Background(), k.ifname, prior) },
	}, nil
}

func iwGetPowerSave(ctx context.Context, ifname string) (string, error) {
	path, err := exec.LookPath("iw")
	if err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, path, "dev", ifname, "get", "power_save").Output()
	if err != nil {
		return "", err
	}
	if strings.Contains(string(out), "on") {
		return "on", nil
	}
	return "off", nil
}

func iwSetPowerSave(ctx context.Context, ifname, state string) error {
	path, err := exec.LookPath("iw")
	if err != nil {
		return err
	}
	return exec.CommandContext(ctx, path, "dev", ifname, "set", "power_save", state).Run()
}

// usbAutosuspendKnob disables USB autosuspend on the radio's USB parent,
// if it has one, via the sysfs power/control knob.
type usbAutosuspendKnob struct{ ifname string }

func (usbAutosuspendKnob) Name() string { return "usb_autosuspend" }

func (k usbAutosuspendKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	path, ok := usbPowerControlPath(k.ifname)
	if !ok {
		return types.RevertAction{}, fmt.Errorf("%s is not attached via USB", k.ifname)
	}
	prior, err := os.ReadFile(path)
	if err != nil {
		return types.RevertAction{}, err
	}
	if err := os.WriteFile(path, []byte("on"), 0644); err != nil {
		return types.RevertAction{}, err
	}
	priorVal := strings.TrimSpace(string(prior))
	return types.RevertAction{
		Description: "restore usb power/control=" + priorVal,
		Undo:        func() error { return os.WriteFile(path, []byte(priorVal), 0644) },
	}, nil
}

func usbPowerControlPath(ifname string) (string, bool) {
	devLink := filepath.Join("/sys/class/net", ifname, "device")
	real, err := filepath.EvalSymlinks(devLink)
	if err != nil || !strings.Contains(real, "/usb") {
		return "", false
	}
	// Walk up from the network device's sysfs node to the first USB
	// device's own directory (identified by having an "idVendor" file).
	dir := real
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err == nil {
			return filepath.Join(dir, "power", "control"), true
		}
		dir = filepath.Dir(dir)
	}
	return "", false
}

// cpuGovernorKnob sets every CPU's scaling governor to "performance",
// remembering each CPU's prior governor individually.
type cpuGovernorKnob struct{}

func (cpuGovernorKnob) Name() string { return "cpu_governor" }

func (cpuGovernorKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	cpus, err := filepath.Glob("/sys/devices/system/cpu/cpu[0-9]*/cpufreq/scaling_governor")
	if err != nil {
		return types.RevertAction{}, err
	}
	if len(cpus) == 0 {
		return types.RevertAction{}, fmt.Errorf("no cpufreq scaling_governor nodes found")
	}
	prior := make(map[string]string, len(cpus))
	for _, p := range cpus {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		prior[p] = strings.TrimSpace(string(b))
		_ = os.WriteFile(p, []byte("performance"), 0644)
	}
	return types.RevertAction{
		Description: "restore per-cpu scaling_governor",
		Undo: func() error {
			var firstErr error
			for p, v := range prior {
				if err := os.WriteFile(p, []byte(v), 0644); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		},
	}, nil
}

// sysctlKnob writes a bounded block of sysctl tunables (socket buffers,
// queueing discipline defaults, and — when lowLatency is set — TCP
// congestion control), remembering the prior value of each key it
// actually changes.
type sysctlKnob struct{ lowLatency bool }

func (sysctlKnob) Name() string { return "sysctl_tuning" }

func (k sysctlKnob) keys() map[string]string {
	m := map[string]string{
		"net.core.rmem_max":     "2500000",
		"net.core.wmem_max":     "2500000",
		"net.core.default_qdisc": "fq",
	}
	if k.lowLatency {
		m["net.ipv4.tcp_congestion_control"] = "bbr"
		m["net.ipv4.tcp_low_latency"] = "1"
	}
	return m
}

func (k sysctlKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	desired := k.keys()
	prior := make(map[string]string, len(desired))
	var applyErr error
	for key, val := range desired {
		old, err := sysctl.Get(key)
		if err != nil {
			applyErr = err
			continue
		}
		prior[key] = old
		if err := sysctl.Set(key, val); err != nil {
			applyErr = err
		}
	}
	return types.RevertAction{
		Description: "restore sysctl tunables",
		Undo: func() error {
			var firstErr error
			for key, val := range prior {
				if err := sysctl.Set(key, val); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		},
	}, applyErr
}

// affinityKnob pins either the daemon-adjacent CPU affinity or the
// radio's IRQ affinity to mask (a hex bitmask string), remembering the
// prior mask.
type affinityKnob struct {
	kind   string // "cpu" or "irq"
	mask   string
	ifname string
}

func (a affinityKnob) Name() string { return a.kind + "_affinity" }

func (a affinityKnob) Apply(ctx context.Context) (types.RevertAction, error) {
	if a.kind == "cpu" {
		return a.applyCPU()
	}
	return a.applyIRQ()
}

func (a affinityKnob) applyCPU() (types.RevertAction, error) {
	var prior unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prior); err != nil {
		return types.RevertAction{}, err
	}
	set, err := parseMask(a.mask)
	if err != nil {
		return types.RevertAction{}, err
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return types.RevertAction{}, err
	}
	return types.RevertAction{
		Description: "restore CPU affinity",
		Undo:        func() error { return unix.SchedSetaffinity(0, &prior) },
	}, nil
}

func parseMask(mask string) (unix.CPUSet, error) {
	var set unix.CPUSet
	v, err := strconv.ParseUint(strings.TrimPrefix(mask, "0x"), 16, 64)
	if err != nil {
		return set, fmt.Errorf("invalid affinity mask %q: %w", mask, err)
	}
	for cpu := 0; cpu < 64; cpu++ {
		if v&(1<<uint(cpu)) != 0 {
			set.Set(cpu)
		}
	}
	return set, nil
}

func (a affinityKnob) applyIRQ() (types.RevertAction, error) {
	irq, ok := irqForIfname(a.ifname)
	if !ok {
		return types.RevertAction{}, fmt.Errorf("no IRQ found for %s", a.ifname)
	}
	path := fmt.Sprintf("/proc/irq/%d/smp_affinity", irq)
	prior, err := os.ReadFile(path)
	if err != nil {
		return types.RevertAction{}, err
	}
	mask := strings.TrimPrefix(a.mask, "0x")
	if err := os.WriteFile(path, []byte(mask), 0644); err != nil {
		return types.RevertAction{}, err
	}
	priorVal := strings.TrimSpace(string(prior))
	return types.RevertAction{
		Description: fmt.Sprintf("restore IRQ %d affinity", irq),
		Undo:        func() error { return os.WriteFile(path, []byte(priorVal), 0644) },
	}, nil
}

func irqForIfname(ifname string) (int, bool) {
	f, err := os.Open("/proc/interrupts")
	if err != nil {
		return 0, false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, ifname) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		irqStr := strings.TrimSuffix(fields[0], ":")
		if irq, err := strconv.Atoi(irqStr); err == nil {
			return irq, true
		}
	}
	return 0, false
}

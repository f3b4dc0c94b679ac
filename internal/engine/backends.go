package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/openvr-net/hotspotd/internal/types"
)

// Profile is the effective, post-resolution, post-validation parameter
// set for one Start attempt — spec.md's "effective plan" — handed to a
// Backend to turn into a concrete Spec.
type Profile struct {
	APIfname     string
	SSID         string
	Passphrase   string
	Country      string
	Band         types.Band
	Channel      int
	ChannelWidth types.ChannelWidth
	NoVirt       bool // optimized_no_virt: don't clone a virtual AP interface
	BridgeUplink string
	RunDir       string // scratch directory for this attempt; watched for the discovered config dir
}

// Backend turns a Profile into a concrete process Spec. Three backends
// implement it: orchestrator (2.4/5 GHz NAT), direct (6 GHz / WPA3-SAE),
// and bridge (bridge_mode=true). Lifecycle selects exactly one per
// attempt, per spec.md §4.7 step 4.
type Backend interface {
	Name() string
	BuildSpec(locator *Locator, p Profile) (Spec, error)
}

// OrchestratorBackend invokes an external shell orchestrator that itself
// spawns the AP daemon and DHCP/DNS server — used for 2.4/5 GHz NAT mode.
type OrchestratorBackend struct{}

func (OrchestratorBackend) Name() string { return "orchestrator" }

func (OrchestratorBackend) BuildSpec(locator *Locator, p Profile) (Spec, error) {
	bin, err := locator.Find("hotspotd-orchestrator")
	if err != nil {
		return Spec{}, fmt.Errorf("missing_binary: %w", err)
	}
	argv := []string{
		"--interface", p.APIfname,
		"--ssid", p.SSID,
	}
	redactIdx := -1
	if p.Passphrase != "" {
		argv = append(argv, "--passphrase", p.Passphrase)
		redactIdx = len(argv) // Binary occupies index 0, so argv[n] here == passphrase value's index in RedactedArgv
	}
	argv = append(argv,
		"--country", p.Country,
		"--band", string(p.Band),
		"--channel", strconv.Itoa(p.Channel),
		"--channel-width", strconv.Itoa(int(p.ChannelWidth)),
	)
	if p.NoVirt {
		argv = append(argv, "--no-virt")
	}
	return Spec{
		Binary:           bin,
		Argv:             argv,
		RedactArgvIndex:  redactIdx,
		Dir:              p.RunDir,
		WatchParentDir:   p.RunDir,
		ConfigDirTimeout: defaultConfigDirTimeout,
	}, nil
}

// DirectBackend invokes the AP daemon directly, with a pre-generated
// config file including WPA3-SAE and country code, for 6 GHz (and any
// wpa3_sae request). It skips internal NAT hooks entirely when the
// firewall reconciler reports a zone-based manager is active — that
// decision is made by the lifecycle core, not here; this backend only
// launches the daemon.
type DirectBackend struct {
	// ConfigPath is the pre-generated hostapd-style config file path for
	// this attempt; the lifecycle core writes it before calling BuildSpec.
	ConfigPath string
}

func (DirectBackend) Name() string { return "direct" }

func (d DirectBackend) BuildSpec(locator *Locator, p Profile) (Spec, error) {
	bin, err := locator.Find("hotspotd-apd")
	if err != nil {
		return Spec{}, fmt.Errorf("missing_binary: %w", err)
	}
	argv := []string{"-dd", d.ConfigPath}
	return Spec{
		Binary:           bin,
		Argv:             argv,
		RedactArgvIndex:  -1, // the secret lives in ConfigPath, not argv
		Dir:              p.RunDir,
		WatchParentDir:   p.RunDir,
		ConfigDirTimeout: defaultConfigDirTimeout,
	}, nil
}

// BridgeBackend brings up a kernel bridge of the chosen uplink and the AP
// interface and skips NAT entirely.
type BridgeBackend struct{}

func (BridgeBackend) Name() string { return "bridge" }

func (BridgeBackend) BuildSpec(locator *Locator, p Profile) (Spec, error) {
	bin, err := locator.Find("hotspotd-apd")
	if err != nil {
		return Spec{}, fmt.Errorf("missing_binary: %w", err)
	}
	argv := []string{
		"--interface", p.APIfname,
		"--ssid", p.SSID,
		"--bridge", p.BridgeUplink,
	}
	redactIdx := -1
	if p.Passphrase != "" {
		argv = append(argv, "--passphrase", p.Passphrase)
		redactIdx = len(argv)
	}
	return Spec{
		Binary:           bin,
		Argv:             argv,
		RedactArgvIndex:  redactIdx,
		Dir:              p.RunDir,
		WatchParentDir:   p.RunDir,
		ConfigDirTimeout: defaultConfigDirTimeout,
	}, nil
}

const defaultConfigDirTimeout = time.Second

// SelectBackend implements spec.md §4.7 step 4's backend choice rule.
// preferDirectOverOrchestrator is the Bazzite platform override: that
// distro's orchestrator-spawned virtual AP interface has been observed to
// fail to come up, so the daemon runs the AP process directly (with the
// firewall reconciler applying NAT itself) for any band the orchestrator
// would otherwise have handled.
func SelectBackend(cfg types.Config, band types.Band, preferDirectOverOrchestrator bool) Backend {
	switch {
	case band == types.Band6GHz || cfg.APSecurity == types.SecurityWPA3SAE:
		return DirectBackend{}
	case cfg.BridgeMode:
		return BridgeBackend{}
	case preferDirectOverOrchestrator:
		return DirectBackend{}
	default:
		return OrchestratorBackend{}
	}
}

package lifecycle

import (
	"context"
	"fmt"
	"net/netip"
	"path/filepath"
	"time"

	"github.com/openvr-net/hotspotd/internal/engine"
	"github.com/openvr-net/hotspotd/internal/firewall"
	"github.com/openvr-net/hotspotd/internal/platform"
	"github.com/openvr-net/hotspotd/internal/tuner"
	"github.com/openvr-net/hotspotd/internal/types"
	"github.com/openvr-net/hotspotd/pkg/log"
	"github.com/openvr-net/hotspotd/pkg/utils"
)

// configDirDiscoveryTimeout bounds how long one attempt waits for the
// backend to drop its runtime config directory, per spec.md §4.7 step 6
// ("within a short window, ≤ 1s").
const configDirDiscoveryTimeout = time.Second

// engineStopGrace is the grace period given to a failed attempt's engine
// before SIGKILL, matching the `stop` pseudo-protocol's grace_s = 3s.
const engineStopGrace = 3 * time.Second

// attemptOutcome is the result of one runAttempt call.
type attemptOutcome struct {
	status *types.Status
	err    *types.LifecycleError
	plan   effectivePlan
}

// runAttempt executes one full Starting attempt: resolve adapter, apply
// tuner and firewall, spawn the chosen backend, enforce the country code
// on the discovered config, and await readiness. On any failure it rolls
// back everything this attempt did before returning.
func (c *Core) runAttempt(ctx context.Context, cfg types.Config, requestedIfname string, p effectivePlan, attemptDir string) attemptOutcome {
	adapterObj, lerr := c.Adapters.SelectFor(ctx, p.Band, requestedIfname)
	if lerr != nil {
		return attemptOutcome{err: lerr, plan: p}
	}
	p = p.resolve(cfg, adapterObj)

	facts := c.Prober.Gather(ctx)

	netAdminCapable, netAdminErr := utils.IsNetAdmin()
	preflightWarnings := append([]string(nil), facts.Warnings...)
	if netAdminErr != nil {
		log.Warnf("lifecycle: failed to check NET_ADMIN capability: %v", netAdminErr)
	} else if !netAdminCapable {
		preflightWarnings = append(preflightWarnings, "process lacks CAP_NET_ADMIN; AP interface configuration may fail")
	}

	readyTimeoutS := cfg.APReadyTimeoutS
	if facts.DistroCachyOS && readyTimeoutS <= 6.0 {
		readyTimeoutS = 12.0
		preflightWarnings = append(preflightWarnings, "platform_cachyos_increased_ap_ready_timeout")
	}
	if facts.DistroBazzite {
		preflightWarnings = append(preflightWarnings, "platform_bazzite_use_direct_backend")
	}

	ledger := &types.RevertLedger{}

	tunerWarnings := tuner.Apply(ctx, tuner.PlanFromConfig(cfg, adapterObj.Ifname), ledger)

	backend := engine.SelectBackend(cfg, p.Band, facts.DistroBazzite)
	skipFirewall := facts.ZoneFirewallActive && p.Band == types.Band6GHz && backend.Name() == "direct"

	var reconciler firewall.Reconciler
	var token firewall.RevertToken
	if !skipFirewall && cfg.FirewallEnabled {
		reconciler = firewall.Select(facts.ZoneFirewallActive)
		profile := firewall.Profile{
			APIfname:     adapterObj.Ifname,
			LANCIDR:      lanCIDR(cfg.LANGatewayIP),
			UplinkIfname: uplinkIfname(cfg, facts),
			Masquerade:   cfg.FirewallEnableMasquerade && cfg.EnableInternet,
			Forward:      cfg.FirewallEnableForward,
			Zone:         cfg.FirewallZone,
			Tag:          DaemonTag,
		}
		var err error
		token, err = reconciler.Apply(ctx, profile)
		if err != nil {
			c.rollback(ctx, nil, ledger, nil, firewall.RevertToken{})
			return attemptOutcome{err: asLifecycleError(err, types.ErrFirewallApplyFailed), plan: p}
		}
	}

	profile := engine.Profile{
		APIfname:     adapterObj.Ifname,
		SSID:         cfg.SSID,
		Passphrase:   cfg.WPA2Passphrase,
		Country:      p.Country,
		Band:         p.Band,
		Channel:      p.Channel,
		ChannelWidth: p.ChannelWidth,
		NoVirt:       p.NoVirt,
		BridgeUplink: cfg.BridgeUplinkIfname,
		RunDir:       attemptDir,
	}

	spec, err := backend.BuildSpec(c.Locator, profile)
	if err != nil {
		c.rollback(ctx, nil, ledger, reconciler, token)
		return attemptOutcome{err: asLifecycleError(err, types.ErrMissingBinary), plan: p}
	}

	handle, err := c.Launch(ctx, spec)
	if err != nil {
		c.rollback(ctx, nil, ledger, reconciler, token)
		return attemptOutcome{err: asLifecycleError(err, types.ErrEngineSpawnFailed), plan: p}
	}

	discDir := waitForConfigDir(handle, configDirDiscoveryTimeout)
	if discDir != "" && p.Country != "" {
		if lerr := enforceCountryCode(discDir, p.Country); lerr != nil {
			c.rollback(ctx, handle, ledger, reconciler, token)
			return attemptOutcome{err: lerr, plan: p}
		}
	}

	primary, fallback := c.Probes(profile, handle)
	readyTimeout := time.Duration(readyTimeoutS * float64(time.Second))
	if lerr := c.Readiness.Await(ctx, readyTimeout, primary, fallback); lerr != nil {
		c.rollback(ctx, handle, ledger, reconciler, token)
		return attemptOutcome{err: lerr, plan: p}
	}

	c.handle = handle
	c.ledger = ledger
	c.firewallRec = reconciler
	c.firewallTok = token
	c.band = p.Band

	stdout, stderr, apLogs := handle.TailLogs()
	status := &types.Status{
		Running:          true,
		Phase:            types.PhaseRunning,
		Adapter:          adapterObj.Ifname,
		APInterface:      adapterObj.Ifname,
		Band:             p.Band,
		Mode:             modeFor(cfg, skipFirewall),
		ChannelWidthMHz:  int(p.ChannelWidth),
		SelectedBand:     p.Band,
		SelectedWidthMHz: int(p.ChannelWidth),
		SelectedChannel:  p.Channel,
		SelectedCountry:  p.Country,
		Engine: &types.EngineStatus{
			PID:         handle.PID(),
			CmdRedacted: handle.RedactedArgv(),
			StdoutTail:  stdout,
			StderrTail:  stderr,
			APLogsTail:  apLogs,
		},
		Warnings: tunerWarnings,
		Platform: types.PlatformInfo{OS: "linux", ZoneFirewallActive: facts.ZoneFirewallActive},
		Preflight: types.PreflightReport{
			RfkillBlocked:   facts.RfkillBlocked,
			DefaultRouteIfn: facts.DefaultRouteIfname,
			NetAdminCapable: netAdminCapable,
			Warnings:        preflightWarnings,
		},
	}
	return attemptOutcome{status: status, plan: p}
}

// rollback undoes everything a failed attempt did, best-effort, in the
// order: stop the engine, revert the firewall, drain the tuner ledger.
// Never returns an error — failures are logged as warnings, matching the
// "revert never raises" propagation policy of spec.md §7.
func (c *Core) rollback(ctx context.Context, handle EngineHandle, ledger *types.RevertLedger, reconciler firewall.Reconciler, token firewall.RevertToken) {
	if handle != nil {
		if err := handle.Stop(ctx, engineStopGrace); err != nil {
			log.Warnf("lifecycle: rollback engine stop: %v", err)
		}
	}
	if reconciler != nil {
		for _, err := range reconciler.Revert(ctx, token) {
			log.Warnf("lifecycle: rollback firewall revert: %v", err)
		}
	}
	if ledger != nil {
		for _, err := range ledger.DrainAll() {
			log.Warnf("lifecycle: rollback tuner revert: %v", err)
		}
	}
}

func waitForConfigDir(handle EngineHandle, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for {
		if dir, ok := handle.DiscoveredConfigDir(); ok {
			return dir
		}
		if time.Now().After(deadline) {
			return ""
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func lanCIDR(gatewayIP string) string {
	addr, err := netip.ParseAddr(gatewayIP)
	if err != nil {
		return ""
	}
	return netip.PrefixFrom(addr, 24).Masked().String()
}

func uplinkIfname(cfg types.Config, facts platform.Facts) string {
	if cfg.BridgeUplinkIfname != "" {
		return cfg.BridgeUplinkIfname
	}
	return facts.DefaultRouteIfname
}

func modeFor(cfg types.Config, skipFirewall bool) types.Mode {
	if cfg.BridgeMode {
		return types.ModeBridge
	}
	return types.ModeNAT
}

func asLifecycleError(err error, fallbackKind types.ErrorKind) *types.LifecycleError {
	if le, ok := err.(*types.LifecycleError); ok {
		return le
	}
	return types.NewError(fallbackKind, fmt.Sprintf("%v", err), "", err)
}

func runDirFor(runDir string, attempt int) string {
	return filepath.Join(runDir, fmt.Sprintf("attempt-%d", attempt))
}

// Package platform gathers read-only facts about the host: kernel network
// devices, wireless PHY capability, regulatory domain, rfkill state, the
// default route, and whether a zone-based firewall manager is active.
// Nothing in this package mutates host state; every probe is bounded and
// its failure degrades to a warning rather than aborting the caller,
// matching §5's "stale inventory is preferred to a hung start".
package platform

import (
	"context"
	"os/exec"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/openvr-net/hotspotd/internal/types"
)

// PhyRadio is what the adapter inventory needs out of one wireless PHY:
// its kernel interface name, capability flags, and regulatory domain.
// Gathering this is platform-specific (nl80211 on Linux); Facts.Radios is
// populated by the linux-specific prober in radios_linux.go.
type PhyRadio struct {
	Ifname          string
	Phy             string
	Bus             types.Bus
	Driver          string
	MAC             string
	SupportsAP      bool
	Supports24GHz   bool
	Supports5GHz    bool
	Supports6GHz    bool
	Supports80MHz   bool
	Supports80211ax bool
	Regdom          string
}

// Facts is a single computed-once-per-lifecycle-call snapshot of
// everything the rest of the core needs to know about the host before
// making any decision — the "gather PlatformFacts once, consume
// everywhere" re-architecture called for in spec.md §9.
type Facts struct {
	Radios             []PhyRadio
	RfkillBlocked      bool
	DefaultRouteIfname string
	ZoneFirewallActive bool
	DistroBazzite      bool
	DistroCachyOS      bool
	Warnings           []string
}

// Prober gathers Facts. It is an interface so the lifecycle core and its
// tests can substitute a fake without touching the kernel.
type Prober interface {
	Gather(ctx context.Context) Facts
}

// probeTimeout bounds every individual probe call so a stuck `iw` or
// netlink read never hangs the lifecycle lock.
const probeTimeout = 2 * time.Second

// RealProber gathers Facts from the live host.
type RealProber struct {
	// ZoneManagerBinary is the name of the zone-based firewall manager's
	// CLI, used to detect whether the service is active. Defaults to
	// "firewall-cmd" (firewalld) when empty.
	ZoneManagerBinary string
}

func (p *RealProber) zoneBinary() string {
	if p.ZoneManagerBinary != "" {
		return p.ZoneManagerBinary
	}
	return "firewall-cmd"
}

// Gather runs every probe, collecting failures as warnings instead of
// aborting, and returns whatever facts it could gather.
func (p *RealProber) Gather(ctx context.Context) Facts {
	var f Facts

	radios, err := probeRadios(ctx)
	if err != nil {
		f.Warnings = append(f.Warnings, "platform_probe_failed: "+err.Error())
	} else {
		f.Radios = radios
	}

	blocked, err := probeRfkill(ctx)
	if err != nil {
		f.Warnings = append(f.Warnings, "platform_probe_failed: rfkill: "+err.Error())
	} else {
		f.RfkillBlocked = blocked
	}

	ifn, err := defaultRouteIfname()
	if err != nil {
		f.Warnings = append(f.Warnings, "platform_probe_failed: default route: "+err.Error())
	} else {
		f.DefaultRouteIfname = ifn
	}

	f.ZoneFirewallActive = zoneFirewallActive(ctx, p.zoneBinary())
	f.DistroBazzite, f.DistroCachyOS = probeDistro()

	return f
}

// defaultRouteIfname returns the ifname of the default IPv4 route, used to
// pick the uplink interface for NAT/bridge when the config doesn't name one.
func defaultRouteIfname() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", err
	}
	for _, r := range routes {
		if r.Dst == nil && r.LinkIndex > 0 {
			link, err := netlink.LinkByIndex(r.LinkIndex)
			if err != nil {
				continue
			}
			return link.Attrs().Name, nil
		}
	}
	return "", nil
}

// zoneFirewallActive detects whether a zone-based firewall manager is
// running by probing its CLI. A missing binary or a non-zero exit both
// mean "not active" — neither is treated as a probe failure, since most
// hosts legitimately don't run one.
func zoneFirewallActive(ctx context.Context, binary string) bool {
	path, err := exec.LookPath(binary)
	if err != nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, path, "--state")
	return cmd.Run() == nil
}

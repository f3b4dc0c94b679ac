//go:build linux

package platform

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"

	"github.com/openvr-net/hotspotd/internal/types"
)

// probeRadios enumerates kernel network devices, keeps the ones backed by
// an 802.11 PHY (identified by the presence of /sys/class/net/<if>/phy80211),
// and asks `iw` for their capability and regulatory domain. Any single
// radio whose `iw` query fails is skipped with its own warning rather than
// failing the whole snapshot.
func probeRadios(ctx context.Context) ([]PhyRadio, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	var radios []PhyRadio
	for _, link := range links {
		attrs := link.Attrs()
		phyLink := filepath.Join("/sys/class/net", attrs.Name, "phy80211")
		target, err := os.Readlink(phyLink)
		if err != nil {
			continue // not a wireless interface
		}
		phy := filepath.Base(target)

		r := PhyRadio{
			Ifname: attrs.Name,
			Phy:    phy,
			MAC:    attrs.HardwareAddr.String(),
			Bus:    busFor(attrs.Name),
			Driver: driverFor(attrs.Name),
		}
		fillCapabilities(ctx, &r)
		r.Regdom = regdomFor(ctx)
		radios = append(radios, r)
	}
	return radios, nil
}

func busFor(ifname string) types.Bus {
	devLink := filepath.Join("/sys/class/net", ifname, "device")
	real, err := filepath.EvalSymlinks(devLink)
	if err != nil {
		return types.BusUnknown
	}
	switch {
	case strings.Contains(real, "/usb"):
		return types.BusUSB
	case strings.Contains(real, "/pci"):
		return types.BusPCI
	case strings.Contains(real, "/platform"):
		return types.BusEmbedded
	default:
		return types.BusUnknown
	}
}

func driverFor(ifname string) string {
	driverLink := filepath.Join("/sys/class/net", ifname, "device", "driver")
	real, err := filepath.EvalSymlinks(driverLink)
	if err != nil {
		return ""
	}
	return filepath.Base(real)
}

// fillCapabilities runs `iw phy <phy> info` and greps the band/AP-mode
// capability lines out of its text output. iw's output format is stable
// across the distros this daemon targets.
func fillCapabilities(ctx context.Context, r *PhyRadio) {
	path, err := exec.LookPath("iw")
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(cctx, path, "phy", r.Phy, "info").Output()
	if err != nil {
		return
	}

	sc := bufio.NewScanner(strings.NewReader(string(out)))
	var inBand bool
	var currentFreq int
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Band "):
			inBand = true
		case strings.HasPrefix(line, "* "):
			// e.g. "* 5180 MHz [36] (20.0 dBm)"
			fields := strings.Fields(line)
			if inBand && len(fields) >= 2 {
				if mhz, err := strconv.Atoi(fields[1]); err == nil {
					currentFreq = mhz
					classifyFreq(r, currentFreq)
				}
			}
		case strings.Contains(line, "Supported interface modes"):
			// subsequent "* AP" lines are parsed below
		case line == "* AP":
			r.SupportsAP = true
		case strings.Contains(line, "VHT Capabilities"):
			r.Supports80MHz = true
		case strings.Contains(line, "HE Iftypes") || strings.Contains(line, "HE PHY Capabilities"):
			r.Supports80211ax = true
		}
	}
}

func classifyFreq(r *PhyRadio, mhz int) {
	switch {
	case mhz >= 2400 && mhz < 2500:
		r.Supports24GHz = true
	case mhz >= 5150 && mhz < 5895:
		r.Supports5GHz = true
	case mhz >= 5925 && mhz < 7125:
		r.Supports6GHz = true
	}
}

// regdomFor asks `iw reg get` for the currently configured regulatory
// domain. Returns "00" (world) on any failure, matching the kernel's own
// fallback.
func regdomFor(ctx context.Context) string {
	path, err := exec.LookPath("iw")
	if err != nil {
		return "00"
	}
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(cctx, path, "reg", "get").Output()
	if err != nil {
		return "00"
	}
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "country ") {
			rest := strings.TrimPrefix(line, "country ")
			if i := strings.IndexAny(rest, ":"); i > 0 {
				return rest[:i]
			}
		}
	}
	return "00"
}

// probeRfkill reports whether any wireless rfkill switch is soft- or
// hard-blocked, by reading /sys/class/rfkill rather than shelling out.
func probeRfkill(ctx context.Context) (bool, error) {
	entries, err := os.ReadDir("/sys/class/rfkill")
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		typeB, err := os.ReadFile(filepath.Join("/sys/class/rfkill", e.Name(), "type"))
		if err != nil || strings.TrimSpace(string(typeB)) != "wlan" {
			continue
		}
		softB, _ := os.ReadFile(filepath.Join("/sys/class/rfkill", e.Name(), "soft"))
		hardB, _ := os.ReadFile(filepath.Join("/sys/class/rfkill", e.Name(), "hard"))
		if strings.TrimSpace(string(softB)) == "1" || strings.TrimSpace(string(hardB)) == "1" {
			return true, nil
		}
	}
	return false, nil
}

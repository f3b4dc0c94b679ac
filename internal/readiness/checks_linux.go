//go:build linux

package readiness

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/openvr-net/hotspotd/internal/types"
)

// ControlSocketPrimary builds a PrimaryProbe that sends a "PING" datagram
// to the AP daemon's control socket (a hostapd-style unix datagram
// socket) and checks for the expected "PONG" reply.
func ControlSocketPrimary(socketPath string) PrimaryProbe {
	return func(ctx context.Context) (bool, error) {
		if socketPath == "" {
			return false, nil
		}
		conn, err := net.DialTimeout("unixgram", socketPath, 300*time.Millisecond)
		if err != nil {
			return false, err
		}
		defer conn.Close()

		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(dl)
		} else {
			_ = conn.SetDeadline(time.Now().Add(300 * time.Millisecond))
		}
		if _, err := conn.Write([]byte("PING")); err != nil {
			return false, err
		}
		buf := make([]byte, 16)
		n, err := conn.Read(buf)
		if err != nil {
			return false, err
		}
		return string(buf[:n]) == "PONG", nil
	}
}

// InterfaceFallback builds a FallbackCheck that verifies: the AP
// interface is administratively UP, its kernel-reported mode is AP, and
// (if ssid is non-empty and advertisedSSID is non-nil) it is advertising
// that SSID; with a nil advertisedSSID the SSID is not compared. isAlive
// reports whether at least one AP daemon process is alive.
func InterfaceFallback(ifname, ssid string, isAlive func() bool, advertisedSSID func() (string, error)) FallbackCheck {
	return func(ctx context.Context) (bool, types.ErrorKind, error) {
		if isAlive != nil && !isAlive() {
			return false, types.ErrAPReadyTimeout, fmt.Errorf("no AP daemon process alive")
		}

		link, err := netlink.LinkByName(ifname)
		if err != nil {
			return false, types.ErrAPInterfaceNotUp, err
		}
		if link.Attrs().Flags&net.FlagUp == 0 {
			return false, types.ErrAPInterfaceNotUp, fmt.Errorf("%s is not administratively up", ifname)
		}

		if !reportsAPType(ctx, ifname) {
			return false, types.ErrAPTypeMismatch, fmt.Errorf("%s is not reported as AP type", ifname)
		}

		if ssid != "" && advertisedSSID != nil {
			got, err := advertisedSSID()
			if err != nil || got != ssid {
				return false, types.ErrSSIDNotAdvertised, fmt.Errorf("advertised SSID %q != expected %q", got, ssid)
			}
		}

		return true, "", nil
	}
}

// reportsAPType asks `iw dev <ifname> info` whether the kernel currently
// reports this interface's type as AP.
func reportsAPType(ctx context.Context, ifname string) bool {
	path, err := exec.LookPath("iw")
	if err != nil {
		return false
	}
	out, err := exec.CommandContext(ctx, path, "dev", ifname, "info").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "type ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "type")) == "AP"
		}
	}
	return false
}

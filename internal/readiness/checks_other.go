//go:build !linux

package readiness

import (
	"context"

	"github.com/openvr-net/hotspotd/internal/types"
)

// ControlSocketPrimary is unavailable off Linux.
func ControlSocketPrimary(socketPath string) PrimaryProbe {
	return func(ctx context.Context) (bool, error) { return false, nil }
}

// InterfaceFallback is unavailable off Linux.
func InterfaceFallback(ifname, ssid string, isAlive func() bool, advertisedSSID func() (string, error)) FallbackCheck {
	return func(ctx context.Context) (bool, types.ErrorKind, error) {
		return false, types.ErrAPInterfaceNotUp, nil
	}
}

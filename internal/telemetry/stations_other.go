//go:build !linux

package telemetry

import (
	"context"
	"fmt"
)

// IWStationReader is unavailable off Linux; iw's station dump is a
// Linux-only nl80211 capability.
func IWStationReader() StationReader {
	return func(ctx context.Context, ifname string) ([]StationStat, error) {
		return nil, fmt.Errorf("station stat sampling not implemented on this platform")
	}
}

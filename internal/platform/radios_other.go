//go:build !linux

package platform

import "context"

// probeRadios is unimplemented on non-Linux hosts; hotspotd is a
// Linux-only daemon, but the package still builds elsewhere for tooling.
func probeRadios(ctx context.Context) ([]PhyRadio, error) {
	return nil, nil
}

func probeRfkill(ctx context.Context) (bool, error) {
	return false, nil
}

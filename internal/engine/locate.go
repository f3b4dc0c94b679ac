package engine

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/openvr-net/hotspotd/pkg/utils"
)

// Locator finds the external programs the engine backends invoke
// (hostapd-style AP daemon, DHCP/DNS server, shell orchestrator), per the
// search order of spec.md §6: vendor/bin/<os_profile>/, then
// vendor/bin/<distro_profile>/ (when this host matches one of the distros
// the vendored binaries are specially built for), then vendor/bin/, then
// $PATH, unless VendoredOnly forces the first three only.
type Locator struct {
	AppDir       string
	VendoredOnly bool

	// DistroProfile names a distro-specific vendored binary subdirectory
	// to search, e.g. "bazzite" or "cachyos". Populated at startup from
	// platform.VendorProfile(); left empty on hosts that don't match a
	// known profile.
	DistroProfile string
}

// osProfile names the vendored binary subdirectory for this host, e.g.
// "linux-x86_64". It uses GNU triplet arch names (matching how the
// vendored hostapd/dnsmasq-family binaries are packaged) rather than Go's
// own GOARCH spelling.
func (l *Locator) osProfile() string {
	return fmt.Sprintf("%s-%s", runtime.GOOS, utils.HostArch())
}

// Find returns the absolute path to name, searching the vendored
// directories before $PATH. Returns a MissingBinary-classed error when
// the program cannot be found anywhere permitted.
func (l *Locator) Find(name string) (string, error) {
	candidates := []string{
		filepath.Join(l.AppDir, "vendor", "bin", l.osProfile(), name),
	}
	if l.DistroProfile != "" {
		candidates = append(candidates, filepath.Join(l.AppDir, "vendor", "bin", l.DistroProfile, name))
	}
	candidates = append(candidates, filepath.Join(l.AppDir, "vendor", "bin", name))
	for _, c := range candidates {
		if isExecutable(c) {
			return c, nil
		}
	}
	if l.VendoredOnly {
		return "", fmt.Errorf("%s: not found in vendored directories (vendored-only mode)", name)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%s: not found in vendor/bin or $PATH", name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

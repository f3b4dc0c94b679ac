package lifecycle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openvr-net/hotspotd/internal/types"
)

func writeTestConf(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnforceCountryCodeRewritesExistingLine(t *testing.T) {
	dir := t.TempDir()
	writeTestConf(t, dir, "hostapd.conf", "interface=wlan0\ncountry_code=00\nssid=test\n")

	if lerr := enforceCountryCode(dir, "US"); lerr != nil {
		t.Fatalf("unexpected error: %v", lerr)
	}

	b, err := os.ReadFile(filepath.Join(dir, "hostapd.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "country_code=US") {
		t.Fatalf("expected rewritten country_code=US, got %q", string(b))
	}
	if strings.Contains(string(b), "country_code=00") {
		t.Fatalf("expected stale country_code=00 to be gone, got %q", string(b))
	}
}

func TestEnforceCountryCodeAppendsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	writeTestConf(t, dir, "hostapd.conf", "interface=wlan0\nssid=test\n")

	if lerr := enforceCountryCode(dir, "DE"); lerr != nil {
		t.Fatalf("unexpected error: %v", lerr)
	}

	b, err := os.ReadFile(filepath.Join(dir, "hostapd.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "country_code=DE") {
		t.Fatalf("expected appended country_code=DE, got %q", string(b))
	}
}

func TestEnforceCountryCodeRejectsInvalidCodeWithIEEE80211d(t *testing.T) {
	dir := t.TempDir()
	ctrlDir := filepath.Join(dir, "ctrl")
	writeTestConf(t, dir, "hostapd.conf", "ieee80211d=1\ncountry_code=00\nctrl_interface="+ctrlDir+"\n")

	lerr := enforceCountryCode(dir, "00")
	if lerr == nil {
		t.Fatal("expected a non-retryable error for an invalid country code under ieee80211d=1")
	}
	if lerr.Kind != types.ErrHostapdInvalidCountryCodeFor80211d {
		t.Fatalf("unexpected error kind: %v", lerr.Kind)
	}
}

func TestEnforceCountryCodeAcceptsValidCodeWithIEEE80211d(t *testing.T) {
	dir := t.TempDir()
	ctrlDir := filepath.Join(dir, "ctrl")
	writeTestConf(t, dir, "hostapd.conf", "ieee80211d=1\ncountry_code=00\nctrl_interface="+ctrlDir+"\n")

	if lerr := enforceCountryCode(dir, "JP"); lerr != nil {
		t.Fatalf("unexpected error: %v", lerr)
	}
	if info, err := os.Stat(ctrlDir); err != nil || !info.IsDir() {
		t.Fatalf("expected ctrl_interface directory to be created at %s", ctrlDir)
	}
}

func TestEnforceCountryCodeNoOpWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	if lerr := enforceCountryCode(dir, "US"); lerr != nil {
		t.Fatalf("expected no-op when no config file exists, got %v", lerr)
	}
}

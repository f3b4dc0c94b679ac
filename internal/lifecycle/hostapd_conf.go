package lifecycle

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openvr-net/hotspotd/internal/types"
)

var countryCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

type hostapdConf struct {
	path          string
	lines         []string
	ieee80211d    bool
	countryCode   string
	ctrlInterface string
}

func findHostapdConf(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".conf") {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

func readHostapdConf(path string) (*hostapdConf, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hc := &hostapdConf{path: path}
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	for sc.Scan() {
		line := sc.Text()
		hc.lines = append(hc.lines, line)
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "ieee80211d="):
			hc.ieee80211d = strings.TrimPrefix(trimmed, "ieee80211d=") == "1"
		case strings.HasPrefix(trimmed, "country_code="):
			hc.countryCode = strings.TrimPrefix(trimmed, "country_code=")
		case strings.HasPrefix(trimmed, "ctrl_interface="):
			hc.ctrlInterface = strings.TrimPrefix(trimmed, "ctrl_interface=")
		}
	}
	return hc, sc.Err()
}

// enforceCountryCode implements spec.md §4.7 step 6: replace or append
// the country_code line in the backend's discovered hostapd-style
// config to match country, ensure its declared ctrl_interface directory
// exists with mode 0755, and validate that when ieee80211d=1 the
// resulting country code is a real two-letter code. Returns a non-nil,
// non-retryable *types.LifecycleError on violation; returns nil (no
// enforcement needed) when the backend never dropped a config file.
func enforceCountryCode(discDir, country string) *types.LifecycleError {
	path, ok := findHostapdConf(discDir)
	if !ok {
		return nil
	}
	hc, err := readHostapdConf(path)
	if err != nil {
		return types.NewError(types.ErrInternal, "failed to read discovered engine config", "", err)
	}

	replaced := false
	for i, line := range hc.lines {
		if strings.HasPrefix(strings.TrimSpace(line), "country_code=") {
			hc.lines[i] = "country_code=" + country
			replaced = true
			break
		}
	}
	if !replaced {
		hc.lines = append(hc.lines, "country_code="+country)
	}
	hc.countryCode = country

	if err := os.WriteFile(path, []byte(strings.Join(hc.lines, "\n")+"\n"), 0644); err != nil {
		return types.NewError(types.ErrInternal, "failed to write discovered engine config", "", err)
	}

	if hc.ctrlInterface != "" {
		if err := os.MkdirAll(hc.ctrlInterface, 0755); err != nil {
			return types.NewError(types.ErrInternal, "failed to create control-interface directory", "", err)
		}
	}

	if hc.ieee80211d && (!countryCodeRe.MatchString(country) || country == "00") {
		return types.NewError(types.ErrHostapdInvalidCountryCodeFor80211d,
			fmt.Sprintf("ieee80211d=1 requires a valid two-letter country code, got %q", country),
			"Set a valid ISO 3166-1 alpha-2 country code in configuration.", nil)
	}
	return nil
}

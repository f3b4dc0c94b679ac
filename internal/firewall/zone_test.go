package firewall_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvr-net/hotspotd/internal/firewall"
)

// fakeFirewallCmd writes a tiny shell script standing in for firewall-cmd
// so ZoneReconciler can be exercised without root or a real firewalld.
func fakeFirewallCmd(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "firewall-cmd")
	script := `#!/bin/sh
case "$*" in
  *--get-zone-of-interface*) echo "public" ;;
  *--query-masquerade*) echo "no" ;;
  *--query-forward*) echo "no" ;;
  *) exit 0 ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestZoneReconcilerApplyAndRevert(t *testing.T) {
	bin := fakeFirewallCmd(t)
	z := firewall.ZoneReconciler{Binary: bin}

	token, err := z.Apply(context.Background(), firewall.Profile{
		APIfname:     "ap0",
		UplinkIfname: "eth0",
		Zone:         "trusted",
		Masquerade:   true,
		Forward:      true,
		Tag:          "hotspotd",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Steps, "zone move + masquerade + forward should each record a revert step")

	errs := z.Revert(context.Background(), token)
	assert.Empty(t, errs)
}

func TestZoneReconcilerApplyFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firewall-cmd")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0755))

	z := firewall.ZoneReconciler{Binary: path}
	_, err := z.Apply(context.Background(), firewall.Profile{APIfname: "ap0", Zone: "trusted"})
	require.Error(t, err)
}

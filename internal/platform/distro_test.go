package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOSRelease(t *testing.T, contents string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	orig := distroOSReleasePaths
	distroOSReleasePaths = []string{path}
	t.Cleanup(func() { distroOSReleasePaths = orig })
}

func TestProbeDistroDetectsBazziteFromIDLike(t *testing.T) {
	writeOSRelease(t, "ID=bazzite\nID_LIKE=fedora\nNAME=\"Bazzite\"\n")
	isBazzite, isCachyOS := probeDistro()
	assert.True(t, isBazzite)
	assert.False(t, isCachyOS)
}

func TestProbeDistroDetectsCachyOS(t *testing.T) {
	writeOSRelease(t, "ID=cachyos\nID_LIKE=arch\nNAME=CachyOS\n")
	isBazzite, isCachyOS := probeDistro()
	assert.False(t, isBazzite)
	assert.True(t, isCachyOS)
}

func TestProbeDistroNeitherOnUnrelatedDistro(t *testing.T) {
	writeOSRelease(t, "ID=fedora\nID_LIKE=\"rhel centos\"\nNAME=Fedora\n")
	isBazzite, isCachyOS := probeDistro()
	assert.False(t, isBazzite)
	assert.False(t, isCachyOS)
}

func TestProbeDistroMissingFileReportsNeither(t *testing.T) {
	orig := distroOSReleasePaths
	distroOSReleasePaths = []string{filepath.Join(t.TempDir(), "does-not-exist")}
	t.Cleanup(func() { distroOSReleasePaths = orig })

	isBazzite, isCachyOS := probeDistro()
	assert.False(t, isBazzite)
	assert.False(t, isCachyOS)
}

func TestParseOSReleaseStripsQuotesAndComments(t *testing.T) {
	info := parseOSRelease("# comment\nID=\"pop\"\nID_LIKE=ubuntu debian\n\nVARIANT='Desktop'\n")
	assert.Equal(t, "pop", info["id"])
	assert.Equal(t, "ubuntu debian", info["id_like"])
	assert.Equal(t, "Desktop", info["variant"])
}

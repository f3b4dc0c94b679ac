package engine_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvr-net/hotspotd/internal/engine"
)

func TestSpawnTailLogsAndStop(t *testing.T) {
	h, err := engine.Spawn(context.Background(), engine.Spec{
		Binary: "/bin/sh",
		Argv: []string{"-c", "echo out-line; echo err-line 1>&2; sleep 5"},
		RedactArgvIndex: -1,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stdout, stderr, _ := h.TailLogs()
		return len(stdout) > 0 && len(stderr) > 0
	}, 2*time.Second, 20*time.Millisecond)

	stdout, stderr, _ := h.TailLogs()
	assert.Contains(t, stdout, "out-line")
	assert.Contains(t, stderr, "err-line")
	assert.True(t, h.IsAlive())

	err = h.Stop(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, h.IsAlive())

	class, ok := h.ExitReason()
	require.True(t, ok)
	assert.Equal(t, engine.ExitSignal, class)
}

func TestSpawnMissingBinary(t *testing.T) {
	_, err := engine.Spawn(context.Background(), engine.Spec{Binary: "/no/such/binary-xyz"})
	require.Error(t, err)
}

func TestRedactedArgv(t *testing.T) {
	h, err := engine.Spawn(context.Background(), engine.Spec{
		Binary:            "/bin/sh",
		Argv:              []string{"-c", "sleep 5", "correcthorse"},
		RedactArgvIndex:   3,
		RedactPlaceholder: "<redacted>",
	})
	require.NoError(t, err)
	defer h.Stop(context.Background(), 100*time.Millisecond)

	argv := h.RedactedArgv()
	assert.Equal(t, "<redacted>", argv[3])
	assert.NotContains(t, argv, "correcthorse")
}

func TestDiscoveredConfigDirViaFsnotify(t *testing.T) {
	dir := t.TempDir()
	h, err := engine.Spawn(context.Background(), engine.Spec{
		Binary:           "/bin/sh",
		Argv:             []string{"-c", "sleep 1; mkdir " + filepath.Join(dir, "run-abc") + "; sleep 5"},
		RedactArgvIndex:  -1,
		WatchParentDir:   dir,
		ConfigDirTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	defer h.Stop(context.Background(), 200*time.Millisecond)

	require.Eventually(t, func() bool {
		_, found := h.DiscoveredConfigDir()
		return found
	}, 3*time.Second, 20*time.Millisecond)

	got, _ := h.DiscoveredConfigDir()
	assert.Equal(t, filepath.Join(dir, "run-abc"), got)
}

func TestCleanExit(t *testing.T) {
	h, err := engine.Spawn(context.Background(), engine.Spec{Binary: "/bin/true"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := h.ExitReason()
		return ok
	}, time.Second, 10*time.Millisecond)

	class, _ := h.ExitReason()
	assert.Equal(t, engine.ExitClean, class)
}

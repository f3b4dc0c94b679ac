package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openvr-net/hotspotd/internal/engine"
	"github.com/openvr-net/hotspotd/internal/types"
)

func TestSelectBackendPicksDirectFor6GHzOrWPA3(t *testing.T) {
	cfg := types.Config{APSecurity: types.SecurityWPA2}
	assert.Equal(t, "direct", engine.SelectBackend(cfg, types.Band6GHz, false).Name())

	cfg.APSecurity = types.SecurityWPA3SAE
	assert.Equal(t, "direct", engine.SelectBackend(cfg, types.Band5GHz, false).Name())
}

func TestSelectBackendPicksBridgeWhenConfigured(t *testing.T) {
	cfg := types.Config{APSecurity: types.SecurityWPA2, BridgeMode: true}
	assert.Equal(t, "bridge", engine.SelectBackend(cfg, types.Band5GHz, false).Name())
}

func TestSelectBackendDefaultsToOrchestrator(t *testing.T) {
	cfg := types.Config{APSecurity: types.SecurityWPA2}
	assert.Equal(t, "orchestrator", engine.SelectBackend(cfg, types.Band5GHz, false).Name())
	assert.Equal(t, "orchestrator", engine.SelectBackend(cfg, types.Band24GHz, false).Name())
}

func TestSelectBackendBazzitePrefersDirectOverOrchestrator(t *testing.T) {
	cfg := types.Config{APSecurity: types.SecurityWPA2}
	assert.Equal(t, "direct", engine.SelectBackend(cfg, types.Band5GHz, true).Name())
}

func TestSelectBackendBazziteDoesNotOverrideBridgeMode(t *testing.T) {
	cfg := types.Config{APSecurity: types.SecurityWPA2, BridgeMode: true}
	assert.Equal(t, "bridge", engine.SelectBackend(cfg, types.Band5GHz, true).Name())
}

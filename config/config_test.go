package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvr-net/hotspotd/config"
	"github.com/openvr-net/hotspotd/internal/types"
)

func TestLoadDefaultsWhenAbsent(t *testing.T) {
	store := config.NewStore(t.TempDir())
	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, types.Defaults(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := config.NewStore(t.TempDir())

	cfg := types.Defaults()
	cfg.SSID = "VR-NET"
	cfg.WPA2Passphrase = "correcthorse"
	cfg.Country = "US"
	cfg.BandPreference = types.Band5GHz

	persisted, err := store.Save(cfg)
	require.NoError(t, err)
	assert.Empty(t, persisted.WPA2Passphrase, "passphrase must never be in the persisted record")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "VR-NET", loaded.SSID)
	assert.Empty(t, loaded.WPA2Passphrase)

	set, length := store.PassphraseInfo()
	assert.True(t, set)
	assert.Equal(t, len("correcthorse"), length)
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	store := config.NewStore(t.TempDir())
	cfg := types.Defaults()
	cfg.SSID = "" // invalid: must be 1..32 octets

	_, err := store.Save(cfg)
	require.Error(t, err)
	var lerr *types.LifecycleError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, types.ErrConfigInvalid, lerr.Kind)
}

func TestRevealPassphraseRequiresConfirmation(t *testing.T) {
	store := config.NewStore(t.TempDir())
	cfg := types.Defaults()
	cfg.SSID = "VR-NET"
	cfg.WPA2Passphrase = "correcthorse"
	_, err := store.Save(cfg)
	require.NoError(t, err)

	_, lerr := store.RevealPassphrase(false)
	require.Error(t, lerr)
	assert.Equal(t, types.ErrConfirmationRequired, lerr.Kind)

	pass, lerr := store.RevealPassphrase(true)
	require.Nil(t, lerr)
	assert.Equal(t, "correcthorse", pass)
}

func TestRevealPassphraseNotSet(t *testing.T) {
	store := config.NewStore(t.TempDir())
	_, lerr := store.RevealPassphrase(true)
	require.Error(t, lerr)
	assert.Equal(t, types.ErrPassphraseNotSet, lerr.Kind)
}

func TestApplyPatchMergesOverCurrent(t *testing.T) {
	base := types.Defaults()
	base.SSID = "VR-NET"

	merged, err := config.ApplyPatch(base, map[string]any{
		"ssid":            "VR-NET-2",
		"enable_internet": false,
	})
	require.NoError(t, err)
	assert.Equal(t, "VR-NET-2", merged.SSID)
	assert.False(t, merged.EnableInternet)
	assert.Equal(t, base.Country, merged.Country)
}

func TestValidateReturnsAllErrors(t *testing.T) {
	cfg := types.Config{
		SSID:              "",
		BandPreference:    types.Band6GHz,
		APSecurity:        types.SecurityWPA2,
		Country:           "00",
		Channel2GFallback: 99,
		ChannelWidth:      types.ChannelWidth(17),
		APReadyTimeoutS:   0,
		QoSPreset:         types.QoSVR,
		LANGatewayIP:      "192.168.50.1",
		DHCPStartIP:       "10.0.0.5",
		DHCPEndIP:         "192.168.50.200",
	}
	errs := types.Validate(cfg)
	assert.GreaterOrEqual(t, len(errs), 5)
}

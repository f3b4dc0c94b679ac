package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"

	"github.com/openvr-net/hotspotd/internal/engine"
	"github.com/openvr-net/hotspotd/internal/lifecycle"
	"github.com/openvr-net/hotspotd/internal/platform"
	"github.com/openvr-net/hotspotd/internal/readiness"
	"github.com/openvr-net/hotspotd/internal/types"
)

func baseTestConfig() types.Config {
	cfg := types.Defaults()
	cfg.SSID = "vr-rig"
	cfg.APAdapterIfname = "wlan0"
	cfg.FirewallEnabled = false
	cfg.TelemetryEnable = false
	cfg.WatchdogEnable = false
	return cfg
}

// stubVendoredBinary makes engine.Locator.Find(name) succeed without
// touching $PATH, by dropping an executable placeholder in appDir's
// non-os-profiled vendor directory.
func stubVendoredBinary(t *testing.T, appDir, name string) {
	t.Helper()
	dir := filepath.Join(appDir, "vendor", "bin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
}

func newTestCore(t *testing.T, cfg types.Config, adapters []types.Adapter, facts platform.Facts, launch lifecycle.EngineLauncher, readinessResults []*types.LifecycleError) (*lifecycle.Core, *fakeConfigStore) {
	t.Helper()
	appDir := t.TempDir()
	stubVendoredBinary(t, appDir, "hotspotd-apd")
	stubVendoredBinary(t, appDir, "hotspotd-orchestrator")

	store := newFakeConfigStore(cfg)
	c := lifecycle.New(store, &fakeAdapters{adapters: adapters}, &fakeProber{facts: facts}, appDir)
	c.Locator = &engine.Locator{AppDir: appDir}
	c.Launch = launch
	c.Readiness = &scriptedReadiness{results: readinessResults}
	c.Probes = func(profile engine.Profile, handle lifecycle.EngineHandle) (readiness.PrimaryProbe, readiness.FallbackCheck) {
		return func(ctx context.Context) (bool, error) { return false, nil },
			func(ctx context.Context) (bool, types.ErrorKind, error) { return false, "", nil }
	}
	c.Clock = clock.New()
	return c, store
}

func succeedingLaunch(h lifecycle.EngineHandle) lifecycle.EngineLauncher {
	return func(ctx context.Context, spec engine.Spec) (lifecycle.EngineHandle, error) {
		return h, nil
	}
}

func TestStartHappyPathPublishesRunningStatus(t *testing.T) {
	cfg := baseTestConfig()
	cfg.BandPreference = types.Band5GHz

	handle := &fakeEngineHandle{pid: 4242, alive: true, discOK: false}
	c, _ := newTestCore(t, cfg, []types.Adapter{fiveGHzAdapter()}, platform.Facts{}, succeedingLaunch(handle), []*types.LifecycleError{nil})

	res := c.Start(context.Background(), nil)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ResultCode != string(types.ResultStarted) {
		t.Fatalf("expected %q, got %q", types.ResultStarted, res.ResultCode)
	}

	status := c.GetStatus(true)
	if status.Phase != types.PhaseRunning {
		t.Fatalf("expected running phase, got %v", status.Phase)
	}
	if status.Band != types.Band5GHz {
		t.Fatalf("expected 5ghz band, got %v", status.Band)
	}
	if status.Engine == nil || status.Engine.PID != 4242 {
		t.Fatalf("expected engine status with pid 4242, got %+v", status.Engine)
	}
}

func TestStartWhileRunningReturnsAlreadyRunning(t *testing.T) {
	cfg := baseTestConfig()
	cfg.BandPreference = types.Band5GHz
	handle := &fakeEngineHandle{pid: 1, alive: true}
	c, _ := newTestCore(t, cfg, []types.Adapter{fiveGHzAdapter()}, platform.Facts{}, succeedingLaunch(handle), []*types.LifecycleError{nil})

	first := c.Start(context.Background(), nil)
	if !first.OK {
		t.Fatalf("setup start failed: %+v", first)
	}

	second := c.Start(context.Background(), nil)
	if second.ResultCode != string(types.ResultAlreadyRunning) {
		t.Fatalf("expected already_running, got %q", second.ResultCode)
	}
}

func TestStopFromStoppedReturnsAlreadyStopped(t *testing.T) {
	cfg := baseTestConfig()
	c, _ := newTestCore(t, cfg, []types.Adapter{fiveGHzAdapter()}, platform.Facts{}, succeedingLaunch(&fakeEngineHandle{}), nil)

	res := c.Stop(context.Background())
	if res.ResultCode != string(types.ResultAlreadyStopped) {
		t.Fatalf("expected already_stopped, got %q", res.ResultCode)
	}
}

func TestStopAfterStartTearsDownEngine(t *testing.T) {
	cfg := baseTestConfig()
	cfg.BandPreference = types.Band5GHz
	handle := &fakeEngineHandle{pid: 7, alive: true}
	c, _ := newTestCore(t, cfg, []types.Adapter{fiveGHzAdapter()}, platform.Facts{}, succeedingLaunch(handle), []*types.LifecycleError{nil})

	if res := c.Start(context.Background(), nil); !res.OK {
		t.Fatalf("start failed: %+v", res)
	}

	res := c.Stop(context.Background())
	if res.ResultCode != string(types.ResultStopped) {
		t.Fatalf("expected stopped, got %q", res.ResultCode)
	}
	if !handle.stopped {
		t.Fatal("expected engine handle to have been stopped")
	}
	if c.GetStatus(false).Phase != types.PhaseStopped {
		t.Fatalf("expected stopped phase, got %v", c.GetStatus(false).Phase)
	}
}

func TestRepairFromErrorClearsPhase(t *testing.T) {
	cfg := baseTestConfig()
	cfg.BandPreference = types.Band5GHz
	lerr := types.NewError(types.ErrAPReadyTimeout, "never came up", "", nil)
	c, _ := newTestCore(t, cfg, []types.Adapter{fiveGHzAdapter()}, platform.Facts{}, succeedingLaunch(&fakeEngineHandle{pid: 9, alive: true}), []*types.LifecycleError{lerr, lerr, lerr})

	res := c.Start(context.Background(), nil)
	if res.OK {
		t.Fatalf("expected start to fail after exhausting fallbacks, got %+v", res)
	}

	repaired := c.Repair(context.Background())
	if repaired.ResultCode != string(types.ResultRepaired) {
		t.Fatalf("expected repaired, got %q", repaired.ResultCode)
	}
	if c.GetStatus(false).Phase != types.PhaseStopped {
		t.Fatalf("expected stopped phase after repair, got %v", c.GetStatus(false).Phase)
	}
}

func TestGetConfigRedactsPassphrase(t *testing.T) {
	cfg := baseTestConfig()
	store := newFakeConfigStore(cfg)
	c := lifecycle.New(store, &fakeAdapters{adapters: []types.Adapter{fiveGHzAdapter()}}, &fakeProber{}, t.TempDir())

	if _, lerr := c.SaveConfig(map[string]any{"wpa2_passphrase": "correcthorsebattery"}); lerr != nil {
		t.Fatalf("save failed: %+v", lerr)
	}

	redacted, err := c.GetConfig()
	if err != nil {
		t.Fatalf("get config failed: %v", err)
	}
	if !redacted.WPA2PassphraseSet {
		t.Fatal("expected passphrase to be reported as set")
	}
	if redacted.WPA2PassphraseLen != len("correcthorsebattery") {
		t.Fatalf("expected length %d, got %d", len("correcthorsebattery"), redacted.WPA2PassphraseLen)
	}
	if redacted.Config.WPA2Passphrase != "" {
		t.Fatal("expected redacted config to never carry the raw passphrase")
	}
}

func TestRevealPassphraseRequiresConfirmation(t *testing.T) {
	cfg := baseTestConfig()
	store := newFakeConfigStore(cfg)
	c := lifecycle.New(store, &fakeAdapters{adapters: []types.Adapter{fiveGHzAdapter()}}, &fakeProber{}, t.TempDir())
	if _, lerr := c.SaveConfig(map[string]any{"wpa2_passphrase": "correcthorsebattery"}); lerr != nil {
		t.Fatalf("save failed: %+v", lerr)
	}

	if _, lerr := c.RevealPassphrase(false); lerr == nil {
		t.Fatal("expected confirmation_required error")
	} else if lerr.Kind != types.ErrConfirmationRequired {
		t.Fatalf("expected confirmation_required, got %v", lerr.Kind)
	}

	pass, lerr := c.RevealPassphrase(true)
	if lerr != nil {
		t.Fatalf("unexpected error: %v", lerr)
	}
	if pass != "correcthorsebattery" {
		t.Fatalf("expected stored passphrase, got %q", pass)
	}
}

func TestListAdaptersReturnsSnapshot(t *testing.T) {
	cfg := baseTestConfig()
	store := newFakeConfigStore(cfg)
	adapter := fiveGHzAdapter()
	c := lifecycle.New(store, &fakeAdapters{adapters: []types.Adapter{adapter}}, &fakeProber{}, t.TempDir())

	inv := c.ListAdapters(context.Background())
	if len(inv.Adapters) != 1 || inv.Adapters[0].Ifname != adapter.Ifname {
		t.Fatalf("unexpected inventory: %+v", inv)
	}
}

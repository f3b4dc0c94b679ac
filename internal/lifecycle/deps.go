package lifecycle

import (
	"context"
	"time"

	"github.com/openvr-net/hotspotd/internal/engine"
	"github.com/openvr-net/hotspotd/internal/platform"
	"github.com/openvr-net/hotspotd/internal/readiness"
	"github.com/openvr-net/hotspotd/internal/types"
)

// ConfigStore is the subset of config.Store the core depends on. An
// interface so tests substitute an in-memory store without touching disk.
type ConfigStore interface {
	Load() (types.Config, error)
	Save(types.Config) (types.Config, error)
	PassphraseInfo() (set bool, length int)
	RevealPassphrase(confirm bool) (string, *types.LifecycleError)
}

// AdapterSelector is the subset of adapter.Inventory the core depends on.
type AdapterSelector interface {
	Snapshot(ctx context.Context) types.AdapterInventory
	SelectFor(ctx context.Context, band types.Band, requestedIfname string) (types.Adapter, *types.LifecycleError)
}

// EngineHandle is the subset of *engine.Handle the core depends on. Any
// type satisfying this (real or fake) can stand in for a spawned attempt.
type EngineHandle interface {
	PID() int
	RedactedArgv() []string
	IsAlive() bool
	ExitReason() (engine.ExitClass, bool)
	TailLogs() (stdout, stderr, apLogs []string)
	DiscoveredConfigDir() (string, bool)
	Stop(ctx context.Context, grace time.Duration) error
}

// EngineLauncher spawns one engine attempt. Defaults to wrapping
// engine.Spawn; tests substitute a fake that never touches a real process.
type EngineLauncher func(ctx context.Context, spec engine.Spec) (EngineHandle, error)

func defaultLauncher(ctx context.Context, spec engine.Spec) (EngineHandle, error) {
	h, err := engine.Spawn(ctx, spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ReadinessWaiter is satisfied by *readiness.Prober.
type ReadinessWaiter interface {
	Await(ctx context.Context, timeout time.Duration, primary readiness.PrimaryProbe, fallback readiness.FallbackCheck) *types.LifecycleError
}

// ProbeBuilder constructs the primary/fallback probes for one attempt
// given the engine.Profile that was spawned and the live handle's
// liveness check. Defaults to the real control-socket + interface checks;
// the default passes no advertised-SSID reader, so its fallback check does
// not compare the SSID.
type ProbeBuilder func(profile engine.Profile, handle EngineHandle) (readiness.PrimaryProbe, readiness.FallbackCheck)

func defaultProbeBuilder(profile engine.Profile, handle EngineHandle) (readiness.PrimaryProbe, readiness.FallbackCheck) {
	primary := readiness.ControlSocketPrimary(controlSocketPath(profile))
	fallback := readiness.InterfaceFallback(profile.APIfname, profile.SSID, handle.IsAlive, nil)
	return primary, fallback
}

func controlSocketPath(profile engine.Profile) string {
	if profile.RunDir == "" {
		return ""
	}
	return profile.RunDir + "/ctrl/" + profile.APIfname
}

// PlatformProber is the subset of platform.Prober the core depends on.
type PlatformProber = platform.Prober

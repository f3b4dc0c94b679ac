package lifecycle_test

import (
	"context"
	"sync"
	"time"

	"github.com/openvr-net/hotspotd/internal/engine"
	"github.com/openvr-net/hotspotd/internal/platform"
	"github.com/openvr-net/hotspotd/internal/readiness"
	"github.com/openvr-net/hotspotd/internal/types"
)

// fakeConfigStore is an in-memory lifecycle.ConfigStore.
type fakeConfigStore struct {
	mu         sync.Mutex
	cfg        types.Config
	passphrase string
}

func newFakeConfigStore(cfg types.Config) *fakeConfigStore {
	return &fakeConfigStore{cfg: cfg}
}

func (f *fakeConfigStore) Load() (types.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, nil
}

func (f *fakeConfigStore) Save(cfg types.Config) (types.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := types.Validate(cfg); len(errs) > 0 {
		return cfg, &types.LifecycleError{Kind: types.ErrConfigInvalid, Detail: &types.ErrorDetail{Title: "invalid"}}
	}
	if cfg.WPA2Passphrase != "" {
		f.passphrase = cfg.WPA2Passphrase
	}
	cfg.WPA2Passphrase = ""
	f.cfg = cfg
	return cfg, nil
}

func (f *fakeConfigStore) PassphraseInfo() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passphrase != "", len(f.passphrase)
}

func (f *fakeConfigStore) RevealPassphrase(confirm bool) (string, *types.LifecycleError) {
	if !confirm {
		return "", types.NewError(types.ErrConfirmationRequired, "confirmation required", "", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.passphrase == "" {
		return "", types.NewError(types.ErrPassphraseNotSet, "no passphrase set", "", nil)
	}
	return f.passphrase, nil
}

// fakeAdapters always returns one fixed, AP-capable adapter set.
type fakeAdapters struct {
	adapters []types.Adapter
}

func (f *fakeAdapters) Snapshot(ctx context.Context) types.AdapterInventory {
	return types.AdapterInventory{Adapters: f.adapters, RecommendedIfname: f.adapters[0].Ifname}
}

func (f *fakeAdapters) SelectFor(ctx context.Context, band types.Band, requestedIfname string) (types.Adapter, *types.LifecycleError) {
	for _, a := range f.adapters {
		if requestedIfname != "" && a.Ifname != requestedIfname {
			continue
		}
		if !a.SupportsAP {
			continue
		}
		if band == types.BandRecommended || a.SupportsBand(band) {
			return a, nil
		}
	}
	if band == types.Band6GHz {
		return types.Adapter{}, types.NewError(types.ErrNo6GHzAPAdapter, "no 6ghz adapter", "", nil)
	}
	return types.Adapter{}, types.NewError(types.ErrAdapterNotFound, "no matching adapter", "", nil)
}

func fiveGHzAdapter() types.Adapter {
	return types.Adapter{
		Ifname: "wlan0", Bus: types.BusUSB, SupportsAP: true,
		Supports24GHz: true, Supports5GHz: true, Supports6GHz: true,
		Regdom: "US", Score: 100,
	}
}

// fakeProber satisfies platform.Prober with fixed facts.
type fakeProber struct {
	facts platform.Facts
}

func (f *fakeProber) Gather(ctx context.Context) platform.Facts { return f.facts }

// fakeEngineHandle satisfies lifecycle.EngineHandle without touching a
// real process.
type fakeEngineHandle struct {
	pid      int
	alive    bool
	discDir  string
	discOK   bool
	stopErr  error
	stopped  bool
}

func (h *fakeEngineHandle) PID() int                    { return h.pid }
func (h *fakeEngineHandle) RedactedArgv() []string       { return []string{"hotspotd-apd", "--passphrase", "<redacted>"} }
func (h *fakeEngineHandle) IsAlive() bool                { return h.alive }
func (h *fakeEngineHandle) ExitReason() (engine.ExitClass, bool) { return "", false }
func (h *fakeEngineHandle) TailLogs() ([]string, []string, []string) { return nil, nil, nil }
func (h *fakeEngineHandle) DiscoveredConfigDir() (string, bool) { return h.discDir, h.discOK }
func (h *fakeEngineHandle) Stop(ctx context.Context, grace time.Duration) error {
	h.stopped = true
	h.alive = false
	return h.stopErr
}

// scriptedReadiness returns a fixed sequence of results, one per Await
// call, so a test can drive the fallback chain deterministically. The
// last entry repeats once the sequence is exhausted.
type scriptedReadiness struct {
	mu      sync.Mutex
	results []*types.LifecycleError
	calls   int
}

func (s *scriptedReadiness) Await(ctx context.Context, timeout time.Duration, primary readiness.PrimaryProbe, fallback readiness.FallbackCheck) *types.LifecycleError {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx]
}

// Package lifecycle implements the Hotspot Lifecycle Core: the
// Stopped/Starting/Running/Stopping/Error state machine that composes
// the adapter inventory, config store, engine supervision, firewall
// reconciler, tuner, readiness prober, and telemetry sampler under a
// single serialization lock. Core is the one owned value the process
// entrypoint holds and passes by reference to the (out of scope)
// control-plane layer — the re-architecture spec.md §9 calls for in
// place of a reference implementation's module-level globals.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openvr-net/hotspotd/config"
	"github.com/openvr-net/hotspotd/internal/engine"
	"github.com/openvr-net/hotspotd/internal/firewall"
	"github.com/openvr-net/hotspotd/internal/platform"
	"github.com/openvr-net/hotspotd/internal/readiness"
	"github.com/openvr-net/hotspotd/internal/telemetry"
	"github.com/openvr-net/hotspotd/internal/types"
	"github.com/openvr-net/hotspotd/pkg/log"
)

// DaemonTag marks every firewall rule/zone-membership hotspotd creates,
// so repair's Cleanup only removes what this daemon is responsible for.
const DaemonTag = "hotspotd"

// Core is the Hotspot Lifecycle Core. Construct with New; the zero value
// is not usable.
type Core struct {
	mu sync.Mutex // the single serialization lock, spec.md §5

	Config   ConfigStore
	Adapters AdapterSelector
	Prober   platform.Prober
	Locator  *engine.Locator
	Launch   EngineLauncher
	Probes   ProbeBuilder
	Readiness ReadinessWaiter
	Clock    clock.Clock

	RunDir string

	status atomic.Pointer[types.Status]

	// running-attempt bookkeeping, valid only while Phase == Running.
	handle      EngineHandle
	ledger      *types.RevertLedger
	firewallRec firewall.Reconciler
	firewallTok firewall.RevertToken
	band        types.Band

	supervisorCancel context.CancelFunc
	supervisorGroup  *errgroup.Group
}

// New returns a Core wired to the real platform: real config store,
// adapter inventory, engine launcher, and readiness prober.
func New(cfgStore ConfigStore, adapters AdapterSelector, prober platform.Prober, runDir string) *Core {
	c := &Core{
		Config:    cfgStore,
		Adapters:  adapters,
		Prober:    prober,
		Locator:   &engine.Locator{AppDir: runDir},
		Launch:    defaultLauncher,
		Probes:    defaultProbeBuilder,
		Readiness: readiness.New(),
		Clock:     clock.New(),
		RunDir:    runDir,
	}
	c.status.Store(&types.Status{Phase: types.PhaseStopped})
	return c
}

func (c *Core) currentStatus() *types.Status {
	if s := c.status.Load(); s != nil {
		return s
	}
	return &types.Status{Phase: types.PhaseStopped}
}

func (c *Core) publish(s *types.Status) {
	c.status.Store(s)
}

func newCorrelationID() string { return uuid.NewString() }

func (c *Core) result(ok bool, code types.ResultCode, correlationID string, status *types.Status) types.LifecycleResult {
	return types.LifecycleResult{
		OK:            ok,
		ResultCode:    string(code),
		CorrelationID: correlationID,
		Data:          status,
	}
}

func (c *Core) busyResult(correlationID string) types.LifecycleResult {
	return types.LifecycleResult{
		OK:            false,
		ResultCode:    string(types.ErrLifecycleBusy),
		CorrelationID: correlationID,
		Data:          c.currentStatus(),
	}
}

// GetStatus returns the current published Status. When includeLogs is
// false the engine log tails are cleared, so the control plane's default
// poll stays cheap.
func (c *Core) GetStatus(includeLogs bool) types.Status {
	s := c.currentStatus().Clone()
	if !includeLogs && s.Engine != nil {
		eng := *s.Engine
		eng.StdoutTail = nil
		eng.StderrTail = nil
		eng.APLogsTail = nil
		s.Engine = &eng
	}
	return *s
}

// GetConfig returns the persisted configuration with the passphrase
// redacted to its set/length pair.
func (c *Core) GetConfig() (types.RedactedConfig, error) {
	cfg, err := c.Config.Load()
	if err != nil {
		return types.RedactedConfig{}, err
	}
	set, length := c.Config.PassphraseInfo()
	return cfg.Redacted(set, length), nil
}

// SaveConfig merges patch over the current record, validates, and
// persists it, per spec.md §4.2.
func (c *Core) SaveConfig(patch map[string]any) (types.RedactedConfig, *types.LifecycleError) {
	base, err := c.Config.Load()
	if err != nil {
		return types.RedactedConfig{}, types.NewError(types.ErrInternal, "failed to load current configuration", "", err)
	}
	merged, err := config.ApplyPatch(base, patch)
	if err != nil {
		return types.RedactedConfig{}, types.NewError(types.ErrConfigInvalid, err.Error(), "", err)
	}
	saved, err := c.Config.Save(merged)
	if err != nil {
		if le, ok := err.(*types.LifecycleError); ok {
			return types.RedactedConfig{}, le
		}
		return types.RedactedConfig{}, types.NewError(types.ErrInternal, "failed to persist configuration", "", err)
	}
	set, length := c.Config.PassphraseInfo()
	return saved.Redacted(set, length), nil
}

// RevealPassphrase returns the stored passphrase, guarded by explicit
// confirmation per spec.md §4.2 / §6.
func (c *Core) RevealPassphrase(confirm bool) (string, *types.LifecycleError) {
	return c.Config.RevealPassphrase(confirm)
}

// ListAdapters returns a fresh adapter inventory snapshot.
func (c *Core) ListAdapters(ctx context.Context) types.AdapterInventory {
	return c.Adapters.Snapshot(ctx)
}

func (c *Core) setPhase(phase types.Phase) {
	s := c.currentStatus().Clone()
	s.Phase = phase
	s.Running = phase == types.PhaseRunning
	c.publish(s)
}

// stopSupervisors cancels the shared supervisor context and waits for the
// telemetry sampler and watchdog goroutines to return, via the errgroup
// started by startSupervisors. Safe to call when no supervisors are
// running.
func (c *Core) stopSupervisors() {
	if c.supervisorCancel != nil {
		c.supervisorCancel()
		c.supervisorCancel = nil
	}
	if c.supervisorGroup != nil {
		_ = c.supervisorGroup.Wait()
		c.supervisorGroup = nil
	}
}

// startSupervisors launches the telemetry sampler and watchdog as
// cooperative background tasks under one errgroup.Group, per spec.md
// §4.8. Both read a snapshot of the current engine handle and never
// touch mu. A shared cancelable context lets stopSupervisors tear down
// both with a single cancel + Wait, rather than tracking each
// goroutine's lifetime by hand.
func (c *Core) startSupervisors(cfg types.Config, handle EngineHandle, ifname string, onDeath func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	c.supervisorCancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	c.supervisorGroup = g

	if cfg.TelemetryEnable {
		sampler := &telemetry.Sampler{
			Clock:    c.Clock,
			Interval: time.Duration(cfg.TelemetryIntervalS * float64(time.Second)),
			Ifname:   ifname,
			Read:     telemetry.IWStationReader(),
			OnSample: func(summary types.TelemetrySummary, warnings []string) {
				s := c.currentStatus().Clone()
				t := summary
				s.Telemetry = &t
				if len(warnings) > 0 {
					s.Warnings = append(s.Warnings, warnings...)
				}
				c.publish(s)
			},
		}
		g.Go(func() error { return sampler.Run(gctx) })
	}

	if cfg.WatchdogEnable {
		wd := &telemetry.Watchdog{
			Clock:    c.Clock,
			Interval: time.Duration(cfg.WatchdogIntervalS * float64(time.Second)),
			IsAlive: handle.IsAlive,
			// OnDeath runs on the watchdog's own goroutine, which belongs
			// to supervisorGroup; onDeath in turn calls stopSupervisors,
			// which waits on that same group. Dispatching asynchronously
			// lets Run return (and the group drain) before the restart's
			// own teardown tries to wait on it.
			OnDeath: func(context.Context) {
				log.Warnf("lifecycle: watchdog observed engine death, attempting supervised restart")
				if onDeath != nil {
					go onDeath(context.Background())
				}
			},
		}
		g.Go(func() error { return wd.Run(gctx) })
	}
}

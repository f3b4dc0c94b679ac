// Package adapter turns platform probe output into a scored, ranked
// Adapter inventory and resolves a requested band to a concrete Adapter.
package adapter

import (
	"context"
	"fmt"

	"github.com/openvr-net/hotspotd/internal/platform"
	"github.com/openvr-net/hotspotd/internal/types"
)

// Inventory is the adapter inventory component. It is read-only: every
// Snapshot call re-probes the host and returns a fresh slice, never
// mutating a previous one.
type Inventory struct {
	Prober platform.Prober
}

// New returns an Inventory backed by the given prober.
func New(prober platform.Prober) *Inventory {
	return &Inventory{Prober: prober}
}

func score(r platform.PhyRadio) int {
	s := 0
	if r.SupportsAP {
		s += 100
	}
	if r.Supports6GHz {
		s += 40
	}
	if r.Supports5GHz {
		s += 30
	}
	if r.Supports80211ax {
		s += 15
	}
	if r.Supports80MHz {
		s += 10
	}
	if r.Bus == types.BusUSB {
		s += 5
	}
	return s
}

func toAdapter(r platform.PhyRadio) types.Adapter {
	return types.Adapter{
		Ifname:          r.Ifname,
		Phy:             r.Phy,
		Bus:             r.Bus,
		Driver:          r.Driver,
		MAC:             r.MAC,
		SupportsAP:      r.SupportsAP,
		Supports24GHz:   r.Supports24GHz,
		Supports5GHz:    r.Supports5GHz,
		Supports6GHz:    r.Supports6GHz,
		Supports80MHz:   r.Supports80MHz,
		Supports80211ax: r.Supports80211ax,
		Regdom:          r.Regdom,
		Score:           score(r),
	}
}

// Snapshot reads the current adapter inventory. Probe failures are
// surfaced as a platform_probe_failed warning rather than an error —
// per §4.1, snapshot never retries.
func (i *Inventory) Snapshot(ctx context.Context) types.AdapterInventory {
	facts := i.Prober.Gather(ctx)

	adapters := make([]types.Adapter, 0, len(facts.Radios))
	for _, r := range facts.Radios {
		adapters = append(adapters, toAdapter(r))
	}
	ranked := types.RankAdapters(adapters)

	inv := types.AdapterInventory{Adapters: ranked, Warnings: facts.Warnings}
	for _, a := range ranked {
		if a.SupportsAP {
			inv.RecommendedIfname = a.Ifname
			break
		}
	}
	return inv
}

// SelectFor resolves a requested band (and, optionally, a requested
// adapter) to a concrete Adapter. When requestedIfname is empty, the best
// ranked adapter supporting the band is chosen. band == recommended
// resolves to the best band the chosen adapter supports.
func (i *Inventory) SelectFor(ctx context.Context, band types.Band, requestedIfname string) (types.Adapter, *types.LifecycleError) {
	inv := i.Snapshot(ctx)
	if len(inv.Adapters) == 0 {
		return types.Adapter{}, types.NewError(types.ErrAdapterNotFound,
			"no wireless adapters were found on this host", "Connect a Wi-Fi adapter and retry.", nil)
	}

	if requestedIfname != "" {
		for _, a := range inv.Adapters {
			if a.Ifname != requestedIfname {
				continue
			}
			if !a.SupportsAP {
				return types.Adapter{}, types.NewError(types.ErrAdapterNoAPMode,
					fmt.Sprintf("adapter %s does not support AP mode", requestedIfname), "", nil)
			}
			if band != types.BandRecommended && !a.SupportsBand(band) {
				if band == types.Band6GHz {
					return types.Adapter{}, types.NewError(types.ErrNo6GHzAPAdapter,
						fmt.Sprintf("adapter %s has no 6 GHz AP capability", requestedIfname), "", nil)
				}
				return types.Adapter{}, types.NewError(types.ErrAdapterNoAPMode,
					fmt.Sprintf("adapter %s does not support %s", requestedIfname, band), "", nil)
			}
			return a, nil
		}
		return types.Adapter{}, types.NewError(types.ErrAdapterNotFound,
			fmt.Sprintf("requested adapter %s was not found", requestedIfname), "", nil)
	}

	if band == types.Band6GHz {
		for _, a := range inv.Adapters {
			if a.SupportsAP && a.Supports6GHz {
				return a, nil
			}
		}
		return types.Adapter{}, types.NewError(types.ErrNo6GHzAPAdapter,
			"no adapter on this host supports 6 GHz AP mode", "Choose a different band or install a 6 GHz-capable adapter.", nil)
	}

	for _, a := range inv.Adapters {
		if !a.SupportsAP {
			continue
		}
		if band == types.BandRecommended || a.SupportsBand(band) {
			return a, nil
		}
	}
	return types.Adapter{}, types.NewError(types.ErrAdapterNoAPMode,
		"no adapter on this host supports AP mode in the requested band", "", nil)
}

// Package types holds the data model shared by every hotspotd component:
// adapters, configuration, published status, and the lifecycle error sum
// type. Keeping them in one leaf package lets config, adapter, engine,
// firewall, and lifecycle all import it without a dependency cycle.
package types

import "sort"

// Bus enumerates how an adapter's radio is attached to the host.
type Bus string

const (
	BusUSB      Bus = "usb"
	BusPCI      Bus = "pci"
	BusEmbedded Bus = "embedded"
	BusUnknown  Bus = "unknown"
)

// Band is a requested or selected Wi-Fi band.
type Band string

const (
	BandRecommended Band = "recommended"
	Band24GHz       Band = "2.4ghz"
	Band5GHz        Band = "5ghz"
	Band6GHz        Band = "6ghz"
)

// Adapter is a point-in-time snapshot of one Wi-Fi radio visible to the
// host. Snapshots are never mutated in place; a fresh inventory read
// produces a new slice of Adapters that replaces the old one wholesale.
type Adapter struct {
	Ifname string
	Phy    string
	Bus    Bus
	Driver string
	MAC    string

	SupportsAP       bool
	Supports24GHz    bool
	Supports5GHz     bool
	Supports6GHz     bool
	Supports80MHz    bool
	Supports80211ax  bool

	Regdom string // two-letter country, "00" = world

	Score int
}

// SupportsBand reports whether the adapter can operate in the given band.
func (a Adapter) SupportsBand(b Band) bool {
	switch b {
	case Band24GHz:
		return a.Supports24GHz
	case Band5GHz:
		return a.Supports5GHz
	case Band6GHz:
		return a.Supports6GHz
	default:
		return false
	}
}

// RankAdapters sorts adapters by preference, highest first:
//
//	supports_ap > supports_5ghz > bus=usb > higher score > stable by ifname.
//
// The sort is deterministic: identical input always yields identical
// output, and ties are broken by a stable sort on Ifname so the last
// comparator never needs to inspect anything beyond adjacency.
func RankAdapters(adapters []Adapter) []Adapter {
	ranked := make([]Adapter, len(adapters))
	copy(ranked, adapters)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.SupportsAP != b.SupportsAP {
			return a.SupportsAP
		}
		if a.Supports5GHz != b.Supports5GHz {
			return a.Supports5GHz
		}
		if (a.Bus == BusUSB) != (b.Bus == BusUSB) {
			return a.Bus == BusUSB
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Ifname < b.Ifname
	})
	return ranked
}

// AdapterInventory is the result of an inventory snapshot.
type AdapterInventory struct {
	Adapters         []Adapter
	RecommendedIfname string
	Warnings          []string
}

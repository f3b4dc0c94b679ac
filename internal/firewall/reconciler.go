// Package firewall reconciles the host's packet-filter and NAT state with
// the hotspot's network plane, through one of two interchangeable
// backends: a zone-based firewall manager (firewalld-style) or direct
// packet-filter rules (nftables, with an iptables-nft compatibility
// fallback). Both implement the same Apply/Revert contract so the
// lifecycle core never needs to know which one is active.
package firewall

import (
	"context"
	"time"

	"github.com/openvr-net/hotspotd/internal/types"
)

// Profile is the builder-style input to Apply: everything a reconciler
// needs to know to wire one hotspot's forwarding/NAT rules, and nothing
// else. It deliberately carries no reference to the other backend, so
// "never let a backend call the other" (spec.md §9) cannot be violated by
// accident.
type Profile struct {
	APIfname     string
	LANCIDR      string
	UplinkIfname string
	Masquerade   bool
	Forward      bool
	Zone         string
	// Tag uniquely marks every rule/zone-membership this profile's Apply
	// creates, so Revert (and `repair`) can remove only what this
	// daemon instance added.
	Tag string
}

// RevertToken is the opaque result of Apply: enough state for Revert to
// undo exactly what was applied, even if the caller holds onto it across
// a process restart boundary (not required here, but keeps the shape
// honest — Revert never re-derives state from Profile alone).
type RevertToken struct {
	Backend string
	Steps   []types.RevertAction
}

// Reconciler is implemented by both firewall backends.
type Reconciler interface {
	Name() string
	// Apply wires Profile's forwarding/NAT rules. It must be idempotent:
	// calling Apply twice with an equivalent Profile is a no-op the
	// second time.
	Apply(ctx context.Context, profile Profile) (RevertToken, error)
	// Revert undoes token's steps in reverse order. Each step is
	// best-effort; Revert collects failures rather than aborting, and
	// always attempts every step.
	Revert(ctx context.Context, token RevertToken) []error
	// Cleanup removes any artifact tagged with tag, independent of a
	// specific RevertToken — used by `repair` to mop up after a crash
	// where the token was lost.
	Cleanup(ctx context.Context, tag string) []error
}

// reconcileDeadline bounds each zone-manager CLI invocation made by
// ZoneReconciler so a stuck firewall-cmd never hangs the lifecycle lock.
// DirectReconciler's nftables and iptables calls are not bounded by it.
const reconcileDeadline = 3 * time.Second

func revertInReverse(ctx context.Context, steps []types.RevertAction) []error {
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i].Undo(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

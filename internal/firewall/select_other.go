//go:build !linux

package firewall

import "context"

// Select picks the active reconciler backend. Off Linux there is no
// direct nftables/iptables backend, so only the zone-based manager is
// ever selected; a zone-inactive host simply runs without NAT reconciliation.
func Select(zoneFirewallActive bool) Reconciler {
	return ZoneReconciler{}
}

// DirectReconciler is unavailable off Linux: nftables/iptables-nft
// reconciliation is a Linux-only netlink capability. Its methods are
// no-ops so call sites that reference it (e.g. repair's best-effort
// cleanup sweep) still compile and run harmlessly elsewhere.
type DirectReconciler struct {
	IPTablesFallback bool
}

func (DirectReconciler) Name() string { return "direct" }

func (DirectReconciler) Apply(ctx context.Context, profile Profile) (RevertToken, error) {
	return RevertToken{}, nil
}

func (DirectReconciler) Revert(ctx context.Context, token RevertToken) []error { return nil }

func (DirectReconciler) Cleanup(ctx context.Context, tag string) []error { return nil }

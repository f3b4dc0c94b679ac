//go:build linux

package firewall

// Select picks the active reconciler backend: the zone-based manager when
// the platform probe detected it running, otherwise direct rules. When
// both could in principle apply and the zone manager is inactive, direct
// rules are used — the Open Question in spec.md §9 this decision resolves
// (documented in DESIGN.md).
func Select(zoneFirewallActive bool) Reconciler {
	if zoneFirewallActive {
		return ZoneReconciler{}
	}
	return DirectReconciler{IPTablesFallback: true}
}

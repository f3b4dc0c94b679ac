//go:build linux

package firewall

import (
	"context"
	"fmt"

	"github.com/coreos/go-iptables/iptables"
	"github.com/google/nftables"
	"github.com/google/nftables/expr"

	"github.com/openvr-net/hotspotd/internal/types"
	pkgfirewall "github.com/openvr-net/hotspotd/pkg/firewall"
	"github.com/openvr-net/hotspotd/pkg/log"
)

// tableName is the nftables table every hotspotd-managed rule lives in.
// Because the whole table is owned by this daemon, Revert/Cleanup can
// simply delete it rather than tracking individual rule handles — the
// "tag so revert removes only what was added" requirement is satisfied at
// the table level.
const tableName = "hotspotd"

// DirectReconciler inserts nftables rules directly: a forward rule
// AP->uplink (and its reply), and a NAT postrouting masquerade rule when
// requested. It is Backend B of spec.md §4.5.
type DirectReconciler struct {
	// IPTablesFallback, when true, additionally tries the coreos/go-iptables
	// (iptables-nft) compatibility path if the native nftables API call
	// fails — some hardened kernels reject unprivileged nft netlink
	// sockets even when iptables-nft succeeds. A fallback failure is
	// logged, and Apply then returns firewall_apply_failed carrying the
	// nftables error.
	IPTablesFallback bool
}

func (DirectReconciler) Name() string { return "direct" }

func (d DirectReconciler) Apply(ctx context.Context, profile Profile) (RevertToken, error) {
	if profile.Masquerade {
		// Masquerading a client subnet out an uplink does nothing unless the
		// host forwards between interfaces. Left enabled on stop: disabling
		// global ip_forward when the hotspot tears down risks breaking any
		// other forwarding a shared host already relies on.
		if err := pkgfirewall.EnableIPForwarding(); err != nil {
			log.Warnf("firewall: failed to enable ip forwarding: %v", err)
		}
	}

	conn := &nftables.Conn{}

	existing, _ := conn.ListTables()
	for _, t := range existing {
		if t.Name == tableName && t.Family == nftables.TableFamilyIPv4 {
			// Idempotent: a table tagged for this daemon already exists.
			// Re-applying an equivalent profile is a no-op.
			return RevertToken{Backend: d.Name(), Steps: []types.RevertAction{
				d.cleanupStep(),
			}}, nil
		}
	}

	table := conn.AddTable(&nftables.Table{Family: nftables.TableFamilyIPv4, Name: tableName})

	if profile.Forward {
		fwd := conn.AddChain(&nftables.Chain{
			Name:     "forward",
			Table:    table,
			Type:     nftables.ChainTypeFilter,
			Hooknum:  nftables.ChainHookForward,
			Priority: nftables.ChainPriorityFilter,
		})
		addForwardRule(conn, table, fwd, profile.APIfname, profile.UplinkIfname)
		addForwardRule(conn, table, fwd, profile.UplinkIfname, profile.APIfname)
	}

	if profile.Masquerade {
		post := conn.AddChain(&nftables.Chain{
			Name:     "postrouting",
			Table:    table,
			Type:     nftables.ChainTypeNAT,
			Hooknum:  nftables.ChainHookPostrouting,
			Priority: nftables.ChainPriorityNATSource,
		})
		conn.AddRule(&nftables.Rule{
			Table: table,
			Chain: post,
			Exprs: []expr.Any{
				&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
				&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifnameBytes(profile.APIfname)},
				&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
				&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifnameBytes(profile.UplinkIfname)},
				&expr.Masq{},
			},
		})
	}

	if err := conn.Flush(); err != nil {
		if d.IPTablesFallback {
			if fbErr := d.applyViaIPTables(profile); fbErr != nil {
				log.Warnf("firewall: iptables-nft fallback also failed: %v", fbErr)
			} else {
				log.Warnf("firewall: native nftables apply failed (%v), iptables-nft fallback succeeded", err)
				return RevertToken{Backend: d.Name(), Steps: []types.RevertAction{d.cleanupStep()}}, nil
			}
		}
		return RevertToken{}, types.NewError(types.ErrFirewallApplyFailed,
			"failed to apply nftables rules", "", err)
	}

	return RevertToken{Backend: d.Name(), Steps: []types.RevertAction{d.cleanupStep()}}, nil
}

func (d DirectReconciler) cleanupStep() types.RevertAction {
	return types.RevertAction{
		Description: "remove nftables table " + tableName,
		Undo:         func() error { errs := d.Cleanup(context.Background(), ""); return firstErr(errs) },
	}
}

func addForwardRule(conn *nftables.Conn, table *nftables.Table, chain *nftables.Chain, in, out string) {
	conn.AddRule(&nftables.Rule{
		Table: table,
		Chain: chain,
		Exprs: []expr.Any{
			&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifnameBytes(in)},
			&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifnameBytes(out)},
			&expr.Verdict{Kind: expr.VerdictAccept},
		},
	})
}

func ifnameBytes(n string) []byte {
	b := make([]byte, 16)
	copy(b, []byte(n+"\x00"))
	return b
}

// Revert removes every step in token, in reverse order, best-effort.
func (d DirectReconciler) Revert(ctx context.Context, token RevertToken) []error {
	return revertInReverse(ctx, token.Steps)
}

// Cleanup drops the hotspotd nftables table wholesale. tag is accepted
// for interface conformance but unused: the whole table is this daemon's
// tag, so there is nothing finer-grained to select on.
func (DirectReconciler) Cleanup(ctx context.Context, tag string) []error {
	conn := &nftables.Conn{}
	tables, err := conn.ListTables()
	if err != nil {
		return []error{fmt.Errorf("firewall_revert_incomplete: list tables: %w", err)}
	}
	for _, t := range tables {
		if t.Name == tableName && t.Family == nftables.TableFamilyIPv4 {
			conn.DelTable(t)
		}
	}
	if err := conn.Flush(); err != nil {
		return []error{fmt.Errorf("firewall_revert_incomplete: %w", err)}
	}
	return nil
}

func (d DirectReconciler) applyViaIPTables(profile Profile) error {
	ipt, err := iptables.New()
	if err != nil {
		return err
	}
	if profile.Forward {
		if err := ipt.AppendUnique("filter", "FORWARD", "-i", profile.APIfname, "-o", profile.UplinkIfname, "-j", "ACCEPT"); err != nil {
			return err
		}
		if err := ipt.AppendUnique("filter", "FORWARD", "-i", profile.UplinkIfname, "-o", profile.APIfname, "-j", "ACCEPT"); err != nil {
			return err
		}
	}
	if profile.Masquerade {
		if err := ipt.AppendUnique("nat", "POSTROUTING", "-o", profile.UplinkIfname, "-j", "MASQUERADE"); err != nil {
			return err
		}
	}
	return nil
}

func firstErr(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

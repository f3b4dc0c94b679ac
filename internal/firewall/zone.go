package firewall

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/openvr-net/hotspotd/internal/types"
)

// ZoneReconciler defers to an on-host zone-based firewall manager
// (firewalld-shaped: `firewall-cmd --zone=... --change-interface=...`)
// rather than editing packet-filter rules directly. It is Backend A of
// spec.md §4.5.
type ZoneReconciler struct {
	// Binary is the zone manager's CLI. Defaults to "firewall-cmd".
	Binary string
}

func (z ZoneReconciler) binary() string {
	if z.Binary != "" {
		return z.Binary
	}
	return "firewall-cmd"
}

func (z ZoneReconciler) run(ctx context.Context, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, reconcileDeadline)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(cctx, z.binary(), args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return strings.TrimSpace(out.String()), err
}

func (ZoneReconciler) Name() string { return "zone" }

// Apply moves Profile.APIfname into Profile.Zone and ensures
// masquerade/forward are enabled on the uplink zone, remembering each
// interface's prior zone so Revert can restore it.
func (z ZoneReconciler) Apply(ctx context.Context, profile Profile) (RevertToken, error) {
	zone := profile.Zone
	if zone == "" {
		zone = "trusted"
	}

	var steps []types.RevertAction

	priorZone, err := z.run(ctx, "--get-zone-of-interface", profile.APIfname)
	if err != nil {
		priorZone = ""
	}
	if priorZone != zone {
		if _, err := z.run(ctx, "--zone="+zone, "--change-interface="+profile.APIfname); err != nil {
			z.revertPartial(ctx, steps)
			return RevertToken{}, types.NewError(types.ErrFirewallApplyFailed,
				fmt.Sprintf("failed to move %s into zone %s", profile.APIfname, zone), "", err)
		}
		pz := priorZone
		steps = append(steps, types.RevertAction{
			Description: fmt.Sprintf("restore %s to zone %s", profile.APIfname, pz),
			Undo: func() error {
				if pz == "" {
					return nil
				}
				_, err := z.run(context.Background(), "--zone="+pz, "--change-interface="+profile.APIfname)
				return err
			},
		})
	}

	if profile.Masquerade && profile.UplinkIfname != "" {
		uplinkZone, _ := z.run(ctx, "--get-zone-of-interface", profile.UplinkIfname)
		if uplinkZone == "" {
			uplinkZone = "public"
		}
		already, _ := z.run(ctx, "--zone="+uplinkZone, "--query-masquerade")
		if already != "yes" {
			if _, err := z.run(ctx, "--zone="+uplinkZone, "--add-masquerade"); err != nil {
				z.revertPartial(ctx, steps)
				return RevertToken{}, types.NewError(types.ErrFirewallApplyFailed,
					"failed to enable masquerade on uplink zone", "", err)
			}
			uz := uplinkZone
			steps = append(steps, types.RevertAction{
				Description: "disable masquerade on zone " + uz,
				Undo: func() error {
					_, err := z.run(context.Background(), "--zone="+uz, "--remove-masquerade")
					return err
				},
			})
		}
	}

	if profile.Forward {
		already, _ := z.run(ctx, "--zone="+zone, "--query-forward")
		if already != "yes" {
			if _, err := z.run(ctx, "--zone="+zone, "--add-forward"); err != nil {
				z.revertPartial(ctx, steps)
				return RevertToken{}, types.NewError(types.ErrFirewallApplyFailed,
					"failed to enable forwarding on zone "+zone, "", err)
			}
			zz := zone
			steps = append(steps, types.RevertAction{
				Description: "disable forwarding on zone " + zz,
				Undo: func() error {
					_, err := z.run(context.Background(), "--zone="+zz, "--remove-forward")
					return err
				},
			})
		}
	}

	return RevertToken{Backend: z.Name(), Steps: steps}, nil
}

func (z ZoneReconciler) revertPartial(ctx context.Context, steps []types.RevertAction) {
	for _, err := range revertInReverse(ctx, steps) {
		_ = err // best-effort, nothing more to do during an aborted Apply
	}
}

// Revert undoes every step, best-effort, in reverse order.
func (z ZoneReconciler) Revert(ctx context.Context, token RevertToken) []error {
	return revertInReverse(ctx, token.Steps)
}

// Cleanup has nothing extra to do beyond Revert for the zone backend: the
// zone manager owns no daemon-tagged artifacts other than the interface
// zone membership and the two toggles Apply/Revert already manage.
func (ZoneReconciler) Cleanup(ctx context.Context, tag string) []error { return nil }

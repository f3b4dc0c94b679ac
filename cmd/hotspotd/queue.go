package main

import (
	"context"

	"github.com/openvr-net/hotspotd/internal/lifecycle"
	"github.com/openvr-net/hotspotd/internal/types"
)

// request is one serialized lifecycle operation submitted to the daemon's
// request queue: the op name, optional start overrides, and the channel
// its result is delivered on.
type request struct {
	op        string
	overrides *types.Config
	reply     chan types.LifecycleResult
}

// requestQueue is the internal request queue the daemon drives its one
// lifecycle.Core value off, per spec.md §6's control-plane interface. It
// exists so a future HTTP control plane has a single place to submit
// operations rather than reaching into Core directly from request
// handlers; today the only producer is this process's own boot/shutdown
// sequence.
type requestQueue struct {
	core *lifecycle.Core
	ch   chan request
}

func newRequestQueue(core *lifecycle.Core) *requestQueue {
	return &requestQueue{core: core, ch: make(chan request, 8)}
}

// run drains the queue until ctx is canceled, executing one operation at a
// time. Core already serializes start/stop/repair/restart internally, so
// this loop's job is purely ordering and back-pressure, not exclusion.
func (q *requestQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-q.ch:
			res := q.dispatch(ctx, r)
			if r.reply != nil {
				r.reply <- res
			}
		}
	}
}

func (q *requestQueue) dispatch(ctx context.Context, r request) types.LifecycleResult {
	switch r.op {
	case "start":
		return q.core.Start(ctx, r.overrides)
	case "stop":
		return q.core.Stop(ctx)
	case "restart":
		return q.core.Restart(ctx, r.overrides)
	case "repair":
		return q.core.Repair(ctx)
	default:
		return types.LifecycleResult{OK: false, ResultCode: string(types.ErrInternal)}
	}
}

// submit enqueues op and blocks for its result. Callers on the daemon's
// own goroutine (boot autostart, shutdown stop) use this directly; a
// future control-plane handler would do the same from its own goroutine.
func (q *requestQueue) submit(ctx context.Context, op string, overrides *types.Config) types.LifecycleResult {
	reply := make(chan types.LifecycleResult, 1)
	select {
	case q.ch <- request{op: op, overrides: overrides, reply: reply}:
	case <-ctx.Done():
		return types.LifecycleResult{OK: false, ResultCode: string(types.ErrInternal)}
	}
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return types.LifecycleResult{OK: false, ResultCode: string(types.ErrInternal)}
	}
}

package platform_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openvr-net/hotspotd/internal/platform"
)

// fakeProber returns a fixed platform.Facts value without touching the
// kernel; this file uses it to check that a fake satisfies Prober.
type fakeProber struct {
	facts platform.Facts
}

func (f fakeProber) Gather(ctx context.Context) platform.Facts { return f.facts }

func TestProberInterfaceSatisfiedByFake(t *testing.T) {
	var _ platform.Prober = fakeProber{}
}

func TestRealProberGatherDoesNotBlockPastTimeout(t *testing.T) {
	p := &platform.RealProber{ZoneManagerBinary: "definitely-not-a-real-binary-xyz"}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	facts := p.Gather(ctx)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.False(t, facts.ZoneFirewallActive)
}

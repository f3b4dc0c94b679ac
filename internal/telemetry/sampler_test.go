package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvr-net/hotspotd/internal/telemetry"
	"github.com/openvr-net/hotspotd/internal/types"
)

func TestSummarizeEmptyIsZeroed(t *testing.T) {
	summary := telemetry.Summarize(nil, time.Now())
	assert.Equal(t, 0, summary.ClientCount)
	assert.Zero(t, summary.RSSIAvgDbm)
}

func TestSummarizeAveragesAcrossStations(t *testing.T) {
	stations := []telemetry.StationStat{
		{MAC: "a", RSSIDbm: -50, TxMbps: 100, RxMbps: 50},
		{MAC: "b", RSSIDbm: -60, TxMbps: 80, RxMbps: 40},
	}
	summary := telemetry.Summarize(stations, time.Now())
	assert.Equal(t, 2, summary.ClientCount)
	assert.InDelta(t, -55, summary.RSSIAvgDbm, 0.001)
	assert.InDelta(t, 180, summary.TxMbpsTotal, 0.001)
}

func TestQualityScoreStrongSignalIsHigh(t *testing.T) {
	score := telemetry.QualityScore(-55, 0, 0)
	assert.InDelta(t, 100, score, 0.001)
}

func TestQualityScoreWeakSignalIsLow(t *testing.T) {
	score := telemetry.QualityScore(-90, 0, 0)
	assert.InDelta(t, 0, score, 0.001)
}

func TestSamplerEmitsLowSignalAfterConsecutiveSamples(t *testing.T) {
	mock := clock.NewMock()
	var gotWarnings [][]string
	s := &telemetry.Sampler{
		Clock:    mock,
		Interval: 100 * time.Millisecond,
		Ifname:   "wlan0",
		Read: func(ctx context.Context, ifname string) ([]telemetry.StationStat, error) {
			return []telemetry.StationStat{{MAC: "a", RSSIDbm: -80}}, nil
		},
		OnSample: func(summary types.TelemetrySummary, warnings []string) {
			gotWarnings = append(gotWarnings, warnings)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	// Let Run register its ticker before the mock clock advances.
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 5; i++ {
		mock.Add(100 * time.Millisecond)
	}
	cancel()
	<-done

	require.Len(t, gotWarnings, 5)
	assert.NotContains(t, gotWarnings[0], "low_signal")
	assert.Contains(t, gotWarnings[len(gotWarnings)-1], "low_signal")
}

func TestSamplerEmitsSamplingDegradedOnPersistentFailure(t *testing.T) {
	mock := clock.NewMock()
	var gotWarnings [][]string
	s := &telemetry.Sampler{
		Clock:    mock,
		Interval: 50 * time.Millisecond,
		Ifname:   "wlan0",
		Read: func(ctx context.Context, ifname string) ([]telemetry.StationStat, error) {
			return nil, errors.New("interface gone")
		},
		OnSample: func(summary types.TelemetrySummary, warnings []string) {
			gotWarnings = append(gotWarnings, warnings)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	// Let Run register its ticker before the mock clock advances.
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 5; i++ {
		mock.Add(50 * time.Millisecond)
	}
	cancel()
	<-done

	require.Len(t, gotWarnings, 5)
	assert.Contains(t, gotWarnings[len(gotWarnings)-1], "sampling_degraded")
}

func TestWatchdogInvokesOnDeathOnce(t *testing.T) {
	mock := clock.NewMock()
	alive := true
	deaths := 0
	w := &telemetry.Watchdog{
		Clock:    mock,
		Interval: 100 * time.Millisecond,
		IsAlive:  func() bool { return alive },
		OnDeath:  func(ctx context.Context) { deaths++ },
	}

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	mock.Add(100 * time.Millisecond)
	alive = false
	for i := 0; i < 5; i++ {
		mock.Add(100 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not return after death")
	}
	assert.Equal(t, 1, deaths)
}

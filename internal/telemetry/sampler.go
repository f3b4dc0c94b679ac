// Package telemetry implements the periodic per-station link-quality
// sampler and the engine watchdog. Both are cooperative periodic tasks
// driven by an injectable clock.Clock: they read a snapshot of the
// current engine handle and never touch the lifecycle serialization
// lock, per spec.md §4.8 and the "coroutine-style polling must not leak
// across the control-plane boundary" re-architecture note in §9.
package telemetry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/openvr-net/hotspotd/internal/types"
)

// StationStat is one connected client's link quality at sample time.
type StationStat struct {
	MAC        string
	RSSIDbm    float64
	TxMbps     float64
	RxMbps     float64
	RetryRatio float64
	LossRatio  float64
	IP         string
}

// StationReader reads the current per-station link stats from the AP
// daemon for ifname. A non-nil error means the sample failed outright
// (interface gone, daemon not responding) rather than "zero stations".
type StationReader func(ctx context.Context, ifname string) ([]StationStat, error)

// lowSignalThresholdDbm and highLossThresholdPct are the warning
// thresholds named in spec.md §4.8.
const (
	lowSignalThresholdDbm = -75.0
	highLossThresholdPct  = 5.0
	warnAfterSamples      = 3
)

// Sampler periodically reads station stats for one AP interface and
// publishes a rolling TelemetrySummary plus any warnings via OnSample.
type Sampler struct {
	Clock    clock.Clock
	Interval time.Duration
	Ifname   string
	Read     StationReader
	OnSample func(types.TelemetrySummary, []string)

	lowSignalStreak int
	highLossStreak  int
	failureStreak   int
}

// Run blocks, sampling every Interval until ctx is cancelled. It never
// returns an error on a single failed sample — persistent failure is
// surfaced as a sampling_degraded warning via OnSample instead.
func (s *Sampler) Run(ctx context.Context) error {
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.sampleOnce(ctx, now)
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context, now time.Time) {
	if s.Read == nil {
		return
	}
	stations, err := s.Read(ctx, s.Ifname)
	if err != nil {
		s.failureStreak++
		var warnings []string
		if s.failureStreak > warnAfterSamples {
			warnings = append(warnings, "sampling_degraded")
		}
		if s.OnSample != nil {
			s.OnSample(types.TelemetrySummary{SampledAt: now}, warnings)
		}
		return
	}
	s.failureStreak = 0

	summary := Summarize(stations, now)

	var warnings []string
	if len(stations) > 0 && summary.RSSIAvgDbm < lowSignalThresholdDbm {
		s.lowSignalStreak++
	} else {
		s.lowSignalStreak = 0
	}
	if summary.LossPctAvg > highLossThresholdPct {
		s.highLossStreak++
	} else {
		s.highLossStreak = 0
	}
	if s.lowSignalStreak > warnAfterSamples {
		warnings = append(warnings, "low_signal")
	}
	if s.highLossStreak > warnAfterSamples {
		warnings = append(warnings, "high_loss")
	}

	if s.OnSample != nil {
		s.OnSample(summary, warnings)
	}
}

// Summarize computes the rolling TelemetrySummary for one sample of
// connected stations.
func Summarize(stations []StationStat, sampledAt time.Time) types.TelemetrySummary {
	summary := types.TelemetrySummary{SampledAt: sampledAt, ClientCount: len(stations)}
	if len(stations) == 0 {
		return summary
	}

	var rssiSum, lossSum, qualSum float64
	for _, st := range stations {
		rssiSum += st.RSSIDbm
		lossSum += st.LossRatio * 100
		qualSum += QualityScore(st.RSSIDbm, st.RetryRatio, st.LossRatio)
		summary.TxMbpsTotal += st.TxMbps
		summary.RxMbpsTotal += st.RxMbps
	}
	n := float64(len(stations))
	summary.RSSIAvgDbm = rssiSum / n
	summary.LossPctAvg = lossSum / n
	summary.QualityScoreAvg = qualSum / n
	return summary
}

// QualityScore computes the glossary's "0-100 composite of signal
// strength, retry ratio and loss ratio, normalized so 100 corresponds to
// rssi >= -55 dBm with negligible retries and loss".
func QualityScore(rssiDbm, retryRatio, lossRatio float64) float64 {
	signal := (rssiDbm + 90) / 35 * 100 // -90dBm -> 0, -55dBm -> 100
	if signal < 0 {
		signal = 0
	}
	if signal > 100 {
		signal = 100
	}
	penalty := (retryRatio + lossRatio) * 150
	score := signal - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

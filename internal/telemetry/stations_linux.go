//go:build linux

package telemetry

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// IWStationReader reads per-station link stats via `iw dev <ifname>
// station dump`, the same text-parsing approach internal/platform uses
// for `iw phy ... info` and `iw reg get`. It does not report IP
// addresses — `iw` has no visibility into DHCP leases — so StationStat.IP
// is always empty from this reader.
func IWStationReader() StationReader {
	return func(ctx context.Context, ifname string) ([]StationStat, error) {
		path, err := exec.LookPath("iw")
		if err != nil {
			return nil, err
		}
		out, err := exec.CommandContext(ctx, path, "dev", ifname, "station", "dump").Output()
		if err != nil {
			return nil, err
		}
		return parseStationDump(string(out)), nil
	}
}

func parseStationDump(out string) []StationStat {
	var stations []StationStat
	var cur *StationStat
	var txPackets, txFailed float64

	flush := func() {
		if cur == nil {
			return
		}
		if txPackets > 0 {
			cur.RetryRatio = txFailed / txPackets
		}
		stations = append(stations, *cur)
		cur = nil
		txPackets, txFailed = 0, 0
	}

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "Station ") {
			flush()
			fields := strings.Fields(trimmed)
			mac := ""
			if len(fields) >= 2 {
				mac = fields[1]
			}
			cur = &StationStat{MAC: mac}
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "signal avg:"):
			cur.RSSIDbm = firstFloat(trimmed)
		case strings.HasPrefix(trimmed, "signal:") && cur.RSSIDbm == 0:
			cur.RSSIDbm = firstFloat(trimmed)
		case strings.HasPrefix(trimmed, "tx bitrate:"):
			cur.TxMbps = firstFloat(trimmed)
		case strings.HasPrefix(trimmed, "rx bitrate:"):
			cur.RxMbps = firstFloat(trimmed)
		case strings.HasPrefix(trimmed, "tx packets:"):
			txPackets = firstFloat(trimmed)
		case strings.HasPrefix(trimmed, "tx failed:"):
			txFailed = firstFloat(trimmed)
		case strings.HasPrefix(trimmed, "rx drop misc:"):
			if txPackets > 0 {
				cur.LossRatio = firstFloat(trimmed) / txPackets
			}
		}
	}
	flush()
	return stations
}

// firstFloat pulls the first signed numeric token out of an `iw` output
// line such as "signal avg:\t-46 [-46, -48] dBm" or "tx bitrate:\t144.4
// MBit/s".
func firstFloat(line string) float64 {
	for _, field := range strings.Fields(line) {
		field = strings.TrimPrefix(field, "[")
		field = strings.TrimSuffix(field, "]")
		field = strings.TrimSuffix(field, ",")
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			return v
		}
	}
	return 0
}

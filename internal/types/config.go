package types

import (
	"fmt"
	"net/netip"
	"regexp"
	"unicode"

	"github.com/openvr-net/hotspotd/pkg/utils"
)

// APSecurity is the advertised AP security protocol.
type APSecurity string

const (
	SecurityWPA2     APSecurity = "wpa2"
	SecurityWPA3SAE  APSecurity = "wpa3_sae"
)

// QoSPreset is a named host-side queueing/latency preset. The preset to
// queueing-discipline mapping is out of the core's scope; only the
// invocation hook (Config.QoSPreset) is specified here.
type QoSPreset string

const (
	QoSOff             QoSPreset = "off"
	QoSVR              QoSPreset = "vr"
	QoSBalanced        QoSPreset = "balanced"
	QoSUltraLowLatency QoSPreset = "ultra_low_latency"
	QoSHighThroughput  QoSPreset = "high_throughput"
)

// ChannelWidth is a legal 802.11 channel width in MHz.
type ChannelWidth int

const (
	ChannelWidth20 ChannelWidth = 20
	ChannelWidth40 ChannelWidth = 40
	ChannelWidth80 ChannelWidth = 80
)

// Config is the full, validated hotspot configuration record. It never
// carries the passphrase in memory longer than necessary to validate and
// hand off to the passphrase side-store; Redacted() is what gets
// serialized to the control plane or to disk.
type Config struct {
	// Identity
	SSID           string `yaml:"ssid"`
	WPA2Passphrase string `yaml:"-"` // never persisted in the main record

	// Radio
	BandPreference      Band       `yaml:"band_preference"`
	APSecurity          APSecurity `yaml:"ap_security"`
	Country             string     `yaml:"country"`
	Channel2GFallback   int        `yaml:"channel_2g_fallback"`
	Channel5G           *int       `yaml:"channel_5g,omitempty"`
	Channel6G           *int       `yaml:"channel_6g,omitempty"`
	ChannelWidth        ChannelWidth `yaml:"channel_width"`
	BeaconIntervalMs    int        `yaml:"beacon_interval_ms"`
	DTIMPeriod          int        `yaml:"dtim_period"`
	ShortGuardInterval  bool       `yaml:"short_guard_interval"`
	TxPowerDbm          *int       `yaml:"tx_power_dbm,omitempty"`
	ChannelAutoSelect   bool       `yaml:"channel_auto_select"`

	// Adapter
	APAdapterIfname string `yaml:"ap_adapter_ifname,omitempty"`

	// Network plane
	LANGatewayIP        string `yaml:"lan_gateway_ip"`
	DHCPStartIP         string `yaml:"dhcp_start_ip"`
	DHCPEndIP           string `yaml:"dhcp_end_ip"`
	DHCPDNS             string `yaml:"dhcp_dns"` // "gateway" or literal server list
	EnableInternet      bool   `yaml:"enable_internet"`
	BridgeMode          bool   `yaml:"bridge_mode"`
	BridgeName          string `yaml:"bridge_name,omitempty"`
	BridgeUplinkIfname  string `yaml:"bridge_uplink_ifname,omitempty"`

	// Tuning toggles
	WifiPowerSaveDisable   bool   `yaml:"wifi_power_save_disable"`
	USBAutosuspendDisable  bool   `yaml:"usb_autosuspend_disable"`
	CPUGovernorPerformance bool   `yaml:"cpu_governor_performance"`
	SysctlTuning           bool   `yaml:"sysctl_tuning"`
	InterruptCoalescing    bool   `yaml:"interrupt_coalescing"`
	TCPLowLatency          bool   `yaml:"tcp_low_latency"`
	MemoryTuning           bool   `yaml:"memory_tuning"`
	IOSchedulerOptimize    bool   `yaml:"io_scheduler_optimize"`
	CPUAffinityMask        string `yaml:"cpu_affinity_mask,omitempty"`
	IRQAffinityMask        string `yaml:"irq_affinity_mask,omitempty"`

	// Firewall
	FirewallEnabled          bool   `yaml:"firewall_enabled"`
	FirewallEnableMasquerade bool   `yaml:"firewall_enable_masquerade"`
	FirewallEnableForward    bool   `yaml:"firewall_enable_forward"`
	FirewallCleanupOnStop    bool   `yaml:"firewall_cleanup_on_stop"`
	FirewallZone             string `yaml:"firewall_zone"`

	// QoS
	QoSPreset QoSPreset `yaml:"qos_preset"`
	NATAccel  bool      `yaml:"nat_accel"`

	// Timing
	APReadyTimeoutS     float64 `yaml:"ap_ready_timeout_s"`
	TelemetryEnable     bool    `yaml:"telemetry_enable"`
	TelemetryIntervalS  float64 `yaml:"telemetry_interval_s"`
	WatchdogEnable      bool    `yaml:"watchdog_enable"`
	WatchdogIntervalS   float64 `yaml:"watchdog_interval_s"`
	Autostart           bool    `yaml:"autostart"`

	// Diagnostics
	Debug bool `yaml:"debug"`
}

// RedactedConfig is what gets sent to the control plane or written to
// persisted snapshots: every field of Config except the passphrase,
// replaced by a set flag and length.
type RedactedConfig struct {
	Config                `yaml:",inline"`
	WPA2PassphraseSet bool `yaml:"wpa2_passphrase_set"`
	WPA2PassphraseLen int  `yaml:"wpa2_passphrase_len"`
}

// Redacted strips the passphrase out of cfg and reports whether one was set.
func (c Config) Redacted(passphraseSet bool, passphraseLen int) RedactedConfig {
	out := c
	out.WPA2Passphrase = ""
	return RedactedConfig{
		Config:            out,
		WPA2PassphraseSet: passphraseSet,
		WPA2PassphraseLen: passphraseLen,
	}
}

// Defaults returns a Config populated with the daemon's default settings.
func Defaults() Config {
	return Config{
		BandPreference:     BandRecommended,
		APSecurity:         SecurityWPA2,
		Country:            "US",
		Channel2GFallback:  6,
		ChannelWidth:       ChannelWidth80,
		BeaconIntervalMs:   100,
		DTIMPeriod:         2,
		ChannelAutoSelect:  true,
		LANGatewayIP:       "192.168.50.1",
		DHCPStartIP:        "192.168.50.10",
		DHCPEndIP:          "192.168.50.200",
		DHCPDNS:            "gateway",
		EnableInternet:     true,
		FirewallEnabled:    true,
		FirewallEnableMasquerade: true,
		FirewallEnableForward:    true,
		FirewallCleanupOnStop:    true,
		FirewallZone:             "trusted",
		QoSPreset:                QoSVR,
		APReadyTimeoutS:          12.0,
		TelemetryEnable:          true,
		TelemetryIntervalS:       2.0,
		WatchdogEnable:           true,
		WatchdogIntervalS:        5.0,
		Autostart:                false,
	}
}

var countryRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Validate enforces every invariant of the configuration record and
// returns the complete list of violations, never just the first.
func Validate(c Config) []FieldError {
	var errs []FieldError

	if l := len(c.SSID); l < 1 || l > 32 {
		errs = append(errs, FieldError{"ssid", "must be 1..32 octets"})
	}
	for _, r := range c.SSID {
		if unicode.IsControl(r) {
			errs = append(errs, FieldError{"ssid", "must not contain control characters"})
			break
		}
	}

	if c.BandPreference == Band6GHz && c.APSecurity != SecurityWPA3SAE {
		errs = append(errs, FieldError{"ap_security", "6 GHz band requires wpa3_sae"})
	}
	if c.APSecurity != SecurityWPA2 && c.APSecurity != SecurityWPA3SAE {
		errs = append(errs, FieldError{"ap_security", "must be wpa2 or wpa3_sae"})
	}

	switch c.BandPreference {
	case BandRecommended, Band24GHz, Band5GHz, Band6GHz:
	default:
		errs = append(errs, FieldError{"band_preference", "must be recommended, 2.4ghz, 5ghz, or 6ghz"})
	}

	if c.Country != "" {
		if !countryRe.MatchString(c.Country) {
			errs = append(errs, FieldError{"country", "must match /^[A-Z]{2}$/"})
		} else if c.Country == "00" {
			errs = append(errs, FieldError{"country", "must not be the world regdom \"00\" when ieee80211d is enabled"})
		}
	}

	if c.Channel2GFallback < 1 || c.Channel2GFallback > 14 {
		errs = append(errs, FieldError{"channel_2g_fallback", "must be in [1, 14]"})
	}

	switch c.ChannelWidth {
	case ChannelWidth20, ChannelWidth40, ChannelWidth80:
	default:
		errs = append(errs, FieldError{"channel_width", "must be 20, 40, or 80"})
	}

	if c.APReadyTimeoutS < 1.0 || c.APReadyTimeoutS > 30.0 {
		errs = append(errs, FieldError{"ap_ready_timeout_s", "must be clamped to [1.0, 30.0]"})
	}
	if c.TelemetryIntervalS < 0.5 {
		errs = append(errs, FieldError{"telemetry_interval_s", "must be >= 0.5"})
	}
	if c.WatchdogIntervalS < 0.5 {
		errs = append(errs, FieldError{"watchdog_interval_s", "must be >= 0.5"})
	}

	switch c.QoSPreset {
	case QoSOff, QoSVR, QoSBalanced, QoSUltraLowLatency, QoSHighThroughput:
	default:
		errs = append(errs, FieldError{"qos_preset", "must be a recognized preset"})
	}

	errs = append(errs, validatePassphrase(c.WPA2Passphrase)...)
	errs = append(errs, validateDHCPRange(c)...)

	return errs
}

// validatePassphrase only fires when a non-empty passphrase is supplied —
// it is legal for a patch to omit the passphrase entirely (kept in the
// side-store from a previous save).
func validatePassphrase(p string) []FieldError {
	if p == "" {
		return nil
	}
	var errs []FieldError
	if l := len(p); l < 8 || l > 63 {
		errs = append(errs, FieldError{"wpa2_passphrase", "must be 8..63 printable octets"})
	}
	for _, r := range p {
		if r < 0x20 || r > 0x7e {
			errs = append(errs, FieldError{"wpa2_passphrase", "must consist of printable ASCII octets"})
			break
		}
	}
	return errs
}

func validateDHCPRange(c Config) []FieldError {
	var errs []FieldError
	gw, err := netip.ParseAddr(c.LANGatewayIP)
	if err != nil {
		errs = append(errs, FieldError{"lan_gateway_ip", "must be a valid IPv4 address"})
		return errs
	}
	prefix := netip.PrefixFrom(gw, 24)
	prefix = prefix.Masked()

	start, errS := netip.ParseAddr(c.DHCPStartIP)
	end, errE := netip.ParseAddr(c.DHCPEndIP)
	if errS != nil {
		errs = append(errs, FieldError{"dhcp_start_ip", "must be a valid IPv4 address"})
	}
	if errE != nil {
		errs = append(errs, FieldError{"dhcp_end_ip", "must be a valid IPv4 address"})
	}
	if errS != nil || errE != nil {
		return errs
	}

	if !prefix.Contains(start) {
		errs = append(errs, FieldError{"dhcp_start_ip", fmt.Sprintf("must lie within %s", prefix)})
	} else if first := utils.FirstValidAddress(prefix); start.Compare(first) < 0 {
		errs = append(errs, FieldError{"dhcp_start_ip", fmt.Sprintf("must be at or after the first usable address %s", first)})
	}
	if !prefix.Contains(end) {
		errs = append(errs, FieldError{"dhcp_end_ip", fmt.Sprintf("must lie within %s", prefix)})
	}
	if start == gw {
		errs = append(errs, FieldError{"dhcp_start_ip", "must not equal the gateway"})
	}
	if end == gw {
		errs = append(errs, FieldError{"dhcp_end_ip", "must not equal the gateway"})
	}
	return errs
}

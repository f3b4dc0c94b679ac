package lifecycle

import "github.com/openvr-net/hotspotd/internal/types"

// effectivePlan is spec.md's "effective plan": the post-resolution,
// post-validation parameter set actually handed to the engine backend
// for one Start attempt. It mutates across fallback retries; the
// persisted Config never does.
type effectivePlan struct {
	Band              types.Band
	APSecurity        types.APSecurity
	Country           string
	Channel           int
	ChannelWidth      types.ChannelWidth
	ChannelAutoSelect bool
	Channel2GFallback int
	NoVirt            bool
}

func newPlan(cfg types.Config) effectivePlan {
	return effectivePlan{
		Band:              cfg.BandPreference,
		APSecurity:        cfg.APSecurity,
		Country:           cfg.Country,
		ChannelWidth:      cfg.ChannelWidth,
		ChannelAutoSelect: cfg.ChannelAutoSelect,
		Channel2GFallback: clampChannel2G(cfg.Channel2GFallback),
	}
}

func clampChannel2G(ch int) int {
	if ch < 1 {
		return 1
	}
	if ch > 14 {
		return 14
	}
	return ch
}

// resolve fixes the plan's security and channel for the adapter's
// actually-supported band (band==recommended resolves against the
// adapter), per spec.md §4.7 step 2: "force WPA3-SAE for 6 GHz, clamp
// channel_2g_fallback to [1,14], auto-pick channel when
// channel_auto_select".
func (p effectivePlan) resolve(cfg types.Config, a types.Adapter) effectivePlan {
	out := p
	if out.Band == types.BandRecommended {
		out.Band = bestBandFor(a)
	}
	if out.Band == types.Band6GHz {
		out.APSecurity = types.SecurityWPA3SAE
	}
	out.Channel = out.pickChannel(cfg)
	return out
}

func bestBandFor(a types.Adapter) types.Band {
	switch {
	case a.Supports6GHz:
		return types.Band6GHz
	case a.Supports5GHz:
		return types.Band5GHz
	default:
		return types.Band24GHz
	}
}

// pickChannel resolves the concrete channel number for the plan's band.
// An explicit cfg.Channel5G/Channel6G is honored; otherwise (or when
// channel_auto_select is set) a conservative default is used. 2.4 GHz
// always uses channel_2g_fallback — there is no separate "explicit 2.4
// GHz channel" field in the configuration model.
func (p effectivePlan) pickChannel(cfg types.Config) int {
	switch p.Band {
	case types.Band24GHz:
		return p.Channel2GFallback
	case types.Band5GHz:
		if !p.ChannelAutoSelect && cfg.Channel5G != nil {
			return *cfg.Channel5G
		}
		return 36
	case types.Band6GHz:
		if !p.ChannelAutoSelect && cfg.Channel6G != nil {
			return *cfg.Channel6G
		}
		return 37
	default:
		return p.Channel2GFallback
	}
}

// fallbackTo24GHz applies the "retry at 2.4 GHz with channel_auto_select
// and channel_2g_fallback=6" rule.
func (p effectivePlan) fallbackTo24GHz() effectivePlan {
	out := p
	out.Band = types.Band24GHz
	out.ChannelAutoSelect = true
	out.Channel2GFallback = 6
	out.APSecurity = types.SecurityWPA2
	out.Channel = out.Channel2GFallback
	return out
}

func (p effectivePlan) fallbackTo5GHz() effectivePlan {
	out := p
	out.Band = types.Band5GHz
	out.APSecurity = types.SecurityWPA2
	out.Channel = 36
	return out
}

func (p effectivePlan) withNoVirt() effectivePlan {
	out := p
	out.NoVirt = true
	return out
}

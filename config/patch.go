package config

import (
	"gopkg.in/yaml.v3"

	"github.com/openvr-net/hotspotd/internal/types"
)

// ApplyPatch merges patch over base and returns the resulting Config. Patch
// is a partial record — typically decoded from a control-plane request
// body — expressed as a freeform map so that a caller can omit fields it
// doesn't want to touch, including the zero value of a bool or int field,
// which a typed partial struct cannot distinguish from "not provided".
func ApplyPatch(base types.Config, patch map[string]any) (types.Config, error) {
	var baseMap map[string]any
	baseBytes, err := yaml.Marshal(base)
	if err != nil {
		return base, err
	}
	if err := yaml.Unmarshal(baseBytes, &baseMap); err != nil {
		return base, err
	}

	for k, v := range patch {
		baseMap[k] = v
	}

	mergedBytes, err := yaml.Marshal(baseMap)
	if err != nil {
		return base, err
	}
	merged := base
	if err := yaml.Unmarshal(mergedBytes, &merged); err != nil {
		return base, err
	}
	// The passphrase never round-trips through the map (its yaml tag is
	// "-"); carry it forward explicitly if the patch names it.
	if pass, ok := patch["wpa2_passphrase"].(string); ok {
		merged.WPA2Passphrase = pass
	} else {
		merged.WPA2Passphrase = base.WPA2Passphrase
	}
	return merged, nil
}

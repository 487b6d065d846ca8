package config

import (
	"fmt"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Merge applies a partial update (as produced by decoding a JS-style
// partial settings object) onto base, field-by-field, with arrays
// replaced wholesale rather than element-wise merged and nested maps
// merged key by key (spec §6:
// "a partial update only touches the keys it names; array-valued
// settings are replaced in full"). It reuses the same koanf layering
// Load uses, so the merge semantics and the load semantics never
// diverge.
func Merge(base *Config, partial map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(base, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: failed to load base for merge: %w", err)
	}

	flattened := maps.Flatten(partial, nil, ".")
	if err := k.Load(confmap.Provider(flattened, "."), nil); err != nil {
		return nil, fmt.Errorf("config: failed to load partial update: %w", err)
	}

	merged := &Config{}
	if err := k.Unmarshal("", merged); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal merged config: %w", err)
	}

	merged.normalizeLists()
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

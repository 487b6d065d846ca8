package config

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	json "github.com/goccy/go-json"
)

// Hash computes a stable blake2b-256 digest of cfg's canonical JSON
// encoding, used to detect whether a newly observed configuration
// differs from the last one applied (spec §6:
// "searchProLastAppliedConfig" idempotence key) without persisting the
// whole struct.
func Hash(cfg *Config) (string, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("config: failed to encode for hashing: %w", err)
	}
	sum := blake2b.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// Changed reports whether newCfg's hash differs from lastAppliedHash.
func Changed(newCfg *Config, lastAppliedHash string) (bool, string, error) {
	h, err := Hash(newCfg)
	if err != nil {
		return true, "", err
	}
	return h != lastAppliedHash, h, nil
}

// Package manifest reads the artifact manifest produced by the training
// pipeline. Every promotion decision references the manifest hash so a
// promoted stage is traceable to one exact artifact.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// #region manifest

// Manifest describes one trained artifact.
type Manifest struct {
	Hash      string    `json:"hash"`
	Rank      int       `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
	PairCount int       `json:"training_pair_count"`
}

// #endregion manifest

// #region load

// Load reads and validates a manifest file. A manifest without a hash is
// unusable: no decision could be traced to an artifact.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Hash == "" {
		return Manifest{}, fmt.Errorf("manifest %s: empty artifact hash", path)
	}
	if m.PairCount < 0 {
		return Manifest{}, fmt.Errorf("manifest %s: negative training pair count", path)
	}
	return m, nil
}

// #endregion load

package handler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ModelArtifact is the persisted outcome of a training run. The
// runtime only interprets the three required top-level keys; anything
// else a handler wrote is carried opaquely in Extra and round-trips
// untouched.
type ModelArtifact struct {
	ModelType      string         `json:"model_type"`
	TrainingConfig TrainingConfig `json:"training_config"`
	DatasetInfo    DatasetInfo    `json:"dataset_info"`

	// Extra holds handler-owned top-level fields.
	Extra map[string]json.RawMessage `json:"-"`
}

var artifactKeys = []string{"model_type", "training_config", "dataset_info"}

// MarshalJSON merges the typed fields with the opaque extras.
func (a ModelArtifact) MarshalJSON() ([]byte, error) {
	type plain ModelArtifact
	b, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}

	merged := make(map[string]json.RawMessage, len(a.Extra)+len(artifactKeys))
	for k, v := range a.Extra {
		merged[k] = v
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(b, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the typed fields and stashes unknown top-level
// keys into Extra.
func (a *ModelArtifact) UnmarshalJSON(data []byte) error {
	type plain ModelArtifact
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range artifactKeys {
		delete(raw, k)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*a = ModelArtifact(p)
	a.Extra = raw
	return nil
}

// Validate checks the required top-level keys are populated.
func (a ModelArtifact) Validate() error {
	if a.ModelType == "" {
		return fmt.Errorf("model artifact: model_type is required")
	}
	if a.TrainingConfig == (TrainingConfig{}) {
		return fmt.Errorf("model artifact: training_config is required")
	}
	if a.DatasetInfo.TotalImages == 0 && a.DatasetInfo.UniqueLabels == 0 {
		return fmt.Errorf("model artifact: dataset_info is required")
	}
	return nil
}

// LoadArtifact reads and decodes a ModelArtifact from path.
func LoadArtifact(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var a ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", path, err)
	}
	return &a, nil
}

// WriteArtifact encodes the artifact and writes it atomically: the
// document lands at path complete or not at all, so a failed training
// run never leaves a malformed artifact behind.
func WriteArtifact(path string, a *ModelArtifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write model artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close model artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize model artifact: %w", err)
	}
	return nil
}

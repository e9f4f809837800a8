package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is one handler declaration file inside a handlers
// directory. Each entry names a registered builder plus the options it
// should be constructed with; the built instance decides its own
// identifier, version, and which role contracts it satisfies.
type Manifest struct {
	Handlers []ManifestEntry `yaml:"handlers"`
}

// ManifestEntry declares a single handler to build.
type ManifestEntry struct {
	Builder string         `yaml:"builder"`
	Options map[string]any `yaml:"options,omitempty"`
}

// manifestExtensions are the file extensions Discover treats as
// handler manifests; everything else in the directory is ignored.
var manifestExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
}

// LoadManifest reads and decodes one manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read handler manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode handler manifest %s: %w", path, err)
	}

	for i, entry := range m.Handlers {
		if entry.Builder == "" {
			return nil, fmt.Errorf("handler manifest %s: entry %d has no builder", path, i)
		}
	}

	return &m, nil
}

// WriteManifest encodes a manifest to path, used by the scaffolding
// commands.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode handler manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write handler manifest: %w", err)
	}
	return nil
}

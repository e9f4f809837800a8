package demo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
)

// lookupModel is the demo model payload carried in the artifact's
// extra fields.
type lookupModel struct {
	// Samples maps an image-content hash to the label it was trained
	// with.
	Samples map[string]string `json:"samples"`
	// Labels is the sorted set of distinct labels seen in training.
	Labels []string `json:"labels"`
}

func hashBytes(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// hashImage fingerprints an image by its normalized grayscale pixels,
// so the raw training file and its preprocessed form hash alike.
// Non-decodable payloads are fingerprinted by their raw bytes.
func hashImage(data []byte) string {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return hashBytes(data)
	}
	return hashBytes(normalizeGray(src).Pix)
}

// guess returns the model's answer for an unseen image. The label is
// picked deterministically from the hash so the same bytes always
// yield the same prediction.
func (m *lookupModel) guess(hash string) (string, bool) {
	if label, ok := m.Samples[hash]; ok {
		return label, true
	}
	if len(m.Labels) == 0 {
		return "", false
	}
	h := fnv.New32a()
	h.Write([]byte(hash))
	return m.Labels[int(h.Sum32())%len(m.Labels)], false
}

func (m *lookupModel) encode() (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeModel(a *handler.ModelArtifact) (*lookupModel, error) {
	if a.ModelType != modelType {
		return nil, fmt.Errorf("model type %q is not %q", a.ModelType, modelType)
	}
	raw, err := json.Marshal(a.Extra)
	if err != nil {
		return nil, err
	}
	var m lookupModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.Samples == nil {
		m.Samples = map[string]string{}
	}
	return &m, nil
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// labelFromFilename extracts the label from a dataset filename, the
// text before the first underscore. Files without a label return "".
func labelFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	label, _, found := strings.Cut(base, "_")
	if !found {
		return ""
	}
	return label
}

type sample struct {
	path  string
	label string
}

// scanDataset lists the labeled images in dir, sorted by filename.
func scanDataset(dir string) ([]sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var samples []sample
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		label := labelFromFilename(entry.Name())
		if label == "" {
			continue
		}
		samples = append(samples, sample{
			path:  filepath.Join(dir, entry.Name()),
			label: label,
		})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].path < samples[j].path })
	return samples, nil
}

func distinctLabels(samples []sample) []string {
	seen := map[string]bool{}
	var labels []string
	for _, s := range samples {
		if !seen[s.label] {
			seen[s.label] = true
			labels = append(labels, s.label)
		}
	}
	sort.Strings(labels)
	return labels
}

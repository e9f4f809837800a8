// Package handler defines the four capability contracts a CAPTCHA
// recognition plugin can implement (preprocess, train, evaluate, ocr)
// together with the value types shared across them.
//
// The runtime never calls anything but Info() during discovery; the
// operation methods are invoked only by the pipelines that compose
// handlers into a training, evaluation, or serving run.
package handler

import "fmt"

// Role is the capability category a handler implements.
type Role string

const (
	RolePreprocess Role = "preprocess"
	RoleTrain      Role = "train"
	RoleEvaluate   Role = "evaluate"
	RoleOCR        Role = "ocr"
)

// Roles returns the four roles in their canonical order.
func Roles() []Role {
	return []Role{RolePreprocess, RoleTrain, RoleEvaluate, RoleOCR}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePreprocess, RoleTrain, RoleEvaluate, RoleOCR:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string into a Role, failing on unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown handler role %q", s)
	}
	return r, nil
}

// Handler is the surface every plugin exposes regardless of role.
// Name is the stable registry identifier; Info returns descriptive
// metadata and must include at least "name" and "version".
type Handler interface {
	Name() string
	Info() map[string]any
}

// Preprocess transforms raw image bytes into whatever normalized
// representation the paired OCR handler consumes.
type Preprocess interface {
	Handler
	Process(raw []byte) Result
}

// Train fits a model against the labeled samples under
// TrainingConfig.InputDir and writes a ModelArtifact to OutputPath.
// How labels are derived from the dataset is entirely the handler's
// convention; the runtime never parses filenames.
type Train interface {
	Handler
	Train(cfg TrainingConfig) Result
}

// Evaluate scores a trained model against a labeled directory.
// On success the Result data is an EvaluationResult.
type Evaluate interface {
	Handler
	Evaluate(modelPath, targetDir string) Result
}

// OCR predicts the text in an image. LoadModel must be called before
// Predict; Info must additionally report "model_loaded".
// Metadata key "confidence" carries a 0-1 score when present.
type OCR interface {
	Handler
	LoadModel(modelPath string) bool
	Predict(raw []byte) Result
}

// Version extracts the version string from a handler's Info,
// or "unknown" when the handler does not report one.
func Version(h Handler) string {
	if h == nil {
		return "unknown"
	}
	if v, ok := h.Info()["version"].(string); ok && v != "" {
		return v
	}
	return "unknown"
}

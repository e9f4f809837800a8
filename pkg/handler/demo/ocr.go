package demo

import (
	"sync"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
)

type ocrHandler struct {
	name string

	mu    sync.RWMutex
	model *lookupModel
}

func newOCR(options map[string]any) *ocrHandler {
	return &ocrHandler{name: nameFromOptions(options)}
}

func (h *ocrHandler) Name() string { return h.name }

func (h *ocrHandler) Info() map[string]any {
	h.mu.RLock()
	loaded := h.model != nil
	h.mu.RUnlock()

	m := info(h.name, "ocr")
	m["model_type"] = modelType
	m["model_loaded"] = loaded
	return m
}

func (h *ocrHandler) LoadModel(modelPath string) bool {
	artifact, err := handler.LoadArtifact(modelPath)
	if err != nil {
		return false
	}
	model, err := decodeModel(artifact)
	if err != nil {
		return false
	}
	h.mu.Lock()
	h.model = model
	h.mu.Unlock()
	return true
}

// Predict answers with the trained label when the exact image was
// seen in training, otherwise with a deterministic guess from the
// label set. Confidence reflects which path answered.
func (h *ocrHandler) Predict(raw []byte) handler.Result {
	if len(raw) == 0 {
		return handler.Fail("empty image payload")
	}

	h.mu.RLock()
	model := h.model
	h.mu.RUnlock()
	if model == nil {
		return handler.Fail("model not loaded")
	}

	hash := hashImage(raw)
	label, matched := model.guess(hash)
	if label == "" {
		return handler.Fail("model has no labels")
	}

	confidence := 0.25
	if matched {
		confidence = 0.99
	}
	return handler.Ok(label, map[string]any{
		"confidence": confidence,
		"matched":    matched,
	})
}

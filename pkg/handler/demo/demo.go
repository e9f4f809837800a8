// Package demo provides a reference implementation of every handler
// role. The OCR model is a lookup table keyed by an image-content
// hash: training memorizes the dataset, prediction answers exactly
// for images it has seen and falls back to a deterministic guess for
// the rest. That is useless for real captchas and exactly right for
// exercising the full train/evaluate/serve loop without an ML stack.
package demo

import (
	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
)

const (
	// Name is the identifier all demo handlers register under.
	Name = "demo"

	version = "1.0.0"

	modelType = "demo-lookup"
)

func init() {
	handler.RegisterBuilder("demo_preprocess", func(options map[string]any) (handler.Handler, error) {
		return newPreprocess(options), nil
	})
	handler.RegisterBuilder("demo_train", func(options map[string]any) (handler.Handler, error) {
		return newTrain(options), nil
	})
	handler.RegisterBuilder("demo_evaluate", func(options map[string]any) (handler.Handler, error) {
		return newEvaluate(options), nil
	})
	handler.RegisterBuilder("demo_ocr", func(options map[string]any) (handler.Handler, error) {
		return newOCR(options), nil
	})
}

func nameFromOptions(options map[string]any) string {
	if v, ok := options["name"].(string); ok && v != "" {
		return v
	}
	return Name
}

func info(name, role string) map[string]any {
	return map[string]any{
		"name":        name,
		"version":     version,
		"role":        role,
		"description": "built-in demo " + role + " handler",
	}
}

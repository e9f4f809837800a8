package demo

import (
	"fmt"
	"os"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
)

type evaluateHandler struct {
	name string
}

func newEvaluate(options map[string]any) *evaluateHandler {
	return &evaluateHandler{name: nameFromOptions(options)}
}

func (h *evaluateHandler) Name() string { return h.name }

func (h *evaluateHandler) Info() map[string]any {
	m := info(h.name, "evaluate")
	m["model_type"] = modelType
	return m
}

// Evaluate replays the model's predictions against every labeled
// image under targetDir and scores exact and per-character matches.
func (h *evaluateHandler) Evaluate(modelPath, targetDir string) handler.Result {
	ocr := newOCR(map[string]any{"name": h.name})
	if !ocr.LoadModel(modelPath) {
		return handler.Fail(fmt.Sprintf("load model %s", modelPath))
	}

	samples, err := scanDataset(targetDir)
	if err != nil {
		return handler.Fail(fmt.Sprintf("scan dataset: %v", err))
	}
	if len(samples) == 0 {
		return handler.Fail(fmt.Sprintf("no labeled images in %s", targetDir))
	}

	var correct, charMatches, charTotal int
	for _, s := range samples {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return handler.Fail(fmt.Sprintf("read %s: %v", s.path, err))
		}

		predicted := ""
		if result := ocr.Predict(data); result.Success() {
			predicted, _ = result.Data().(string)
		}
		if predicted == s.label {
			correct++
		}
		charMatches += matchingCharacters(predicted, s.label)
		charTotal += len([]rune(s.label))
	}

	metrics := handler.EvaluationResult{
		Accuracy:           float64(correct) / float64(len(samples)),
		TotalSamples:       len(samples),
		CorrectPredictions: correct,
	}
	if charTotal > 0 {
		metrics.CharacterAccuracy = float64(charMatches) / float64(charTotal)
	}

	return handler.Ok(metrics, map[string]any{
		"model_path": modelPath,
		"target_dir": targetDir,
	})
}

// matchingCharacters counts positions where predicted and expected
// agree, compared rune by rune.
func matchingCharacters(predicted, expected string) int {
	p := []rune(predicted)
	e := []rune(expected)
	n := len(p)
	if len(e) < n {
		n = len(e)
	}
	matches := 0
	for i := 0; i < n; i++ {
		if p[i] == e[i] {
			matches++
		}
	}
	return matches
}

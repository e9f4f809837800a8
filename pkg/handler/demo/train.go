package demo

import (
	"fmt"
	"os"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
)

type trainHandler struct {
	name string
}

func newTrain(options map[string]any) *trainHandler {
	return &trainHandler{name: nameFromOptions(options)}
}

func (h *trainHandler) Name() string { return h.name }

func (h *trainHandler) Info() map[string]any {
	m := info(h.name, "train")
	m["model_type"] = modelType
	return m
}

// Train memorizes every labeled image in the input directory and
// writes the lookup table as a model artifact at the configured
// output path. The label is the filename text before the first
// underscore; files without a label are skipped.
func (h *trainHandler) Train(cfg handler.TrainingConfig) handler.Result {
	samples, err := scanDataset(cfg.InputDir)
	if err != nil {
		return handler.Fail(fmt.Sprintf("scan dataset: %v", err))
	}
	if len(samples) == 0 {
		return handler.Fail(fmt.Sprintf("no labeled images in %s", cfg.InputDir))
	}

	model := &lookupModel{Samples: make(map[string]string, len(samples))}
	for _, s := range samples {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return handler.Fail(fmt.Sprintf("read %s: %v", s.path, err))
		}
		model.Samples[hashImage(data)] = s.label
	}
	model.Labels = distinctLabels(samples)

	extra, err := model.encode()
	if err != nil {
		return handler.Fail(fmt.Sprintf("encode model: %v", err))
	}

	sampleLabels := model.Labels
	if len(sampleLabels) > 5 {
		sampleLabels = sampleLabels[:5]
	}

	artifact := &handler.ModelArtifact{
		ModelType:      modelType,
		TrainingConfig: cfg,
		DatasetInfo: handler.DatasetInfo{
			TotalImages:  len(samples),
			UniqueLabels: len(model.Labels),
			SampleLabels: sampleLabels,
		},
		Extra: extra,
	}
	if err := handler.WriteArtifact(cfg.OutputPath, artifact); err != nil {
		return handler.Fail(fmt.Sprintf("write artifact: %v", err))
	}

	return handler.Ok(artifact, map[string]any{
		"total_images":  len(samples),
		"unique_labels": len(model.Labels),
		"output_path":   cfg.OutputPath,
	})
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/logger"
)

// TrainingReport is the outcome of a successful training run.
type TrainingReport struct {
	Artifact *handler.ModelArtifact
	// Summary is whatever the Train handler returned as result data.
	Summary  any
	Duration time.Duration
}

// Train validates the dataset, runs the Train handler, and verifies
// the artifact the handler claims to have written. A handler-reported
// failure comes back as *HandlerFailure; a success claim without a
// conformant artifact at OutputPath is an ErrHandlerContract.
func Train(ctx context.Context, t handler.Train, cfg handler.TrainingConfig) (*TrainingReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := checkDirNonEmpty(cfg.InputDir, "training input directory"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logger.WithContext(logger.SetHandler(ctx, t.Name()))
	log.Info("training started",
		"input_dir", cfg.InputDir,
		"output_path", cfg.OutputPath,
		"epochs", cfg.Epochs,
	)

	start := time.Now()
	result := t.Train(cfg)
	elapsed := time.Since(start)

	if !result.Success() {
		log.Warn("training failed", "error", result.Err(), "duration", elapsed)
		return nil, &HandlerFailure{Handler: t.Name(), Message: result.Err()}
	}

	artifact, err := handler.LoadArtifact(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: handler %s claimed success but %v",
			ErrHandlerContract, t.Name(), err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("%w: handler %s wrote a non-conformant artifact: %v",
			ErrHandlerContract, t.Name(), err)
	}

	log.Info("training finished",
		"model_type", artifact.ModelType,
		"total_images", artifact.DatasetInfo.TotalImages,
		"unique_labels", artifact.DatasetInfo.UniqueLabels,
		"duration", elapsed,
	)

	return &TrainingReport{
		Artifact: artifact,
		Summary:  result.Data(),
		Duration: elapsed,
	}, nil
}

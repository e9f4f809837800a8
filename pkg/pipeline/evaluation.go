package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/logger"
)

// EvaluationReport is the outcome of a successful evaluation run.
type EvaluationReport struct {
	Metrics  handler.EvaluationResult
	Duration time.Duration
}

// Evaluate validates both paths, runs the Evaluate handler, and checks
// the numeric invariants of the metrics it returned. The model
// artifact is never mutated.
func Evaluate(ctx context.Context, e handler.Evaluate, modelPath, targetDir string) (*EvaluationReport, error) {
	if err := checkFile(modelPath, "model artifact"); err != nil {
		return nil, err
	}
	if err := checkDirNonEmpty(targetDir, "evaluation target directory"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logger.WithContext(logger.SetHandler(ctx, e.Name()))
	log.Info("evaluation started", "model_path", modelPath, "target_dir", targetDir)

	start := time.Now()
	result := e.Evaluate(modelPath, targetDir)
	elapsed := time.Since(start)

	if !result.Success() {
		log.Warn("evaluation failed", "error", result.Err(), "duration", elapsed)
		return nil, &HandlerFailure{Handler: e.Name(), Message: result.Err()}
	}

	metrics, err := coerceEvaluationResult(result.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: handler %s: %v", ErrHandlerContract, e.Name(), err)
	}
	if err := metrics.Validate(); err != nil {
		return nil, fmt.Errorf("%w: handler %s: %v", ErrHandlerContract, e.Name(), err)
	}

	log.Info("evaluation finished",
		"accuracy", metrics.Accuracy,
		"character_accuracy", metrics.CharacterAccuracy,
		"total_samples", metrics.TotalSamples,
		"duration", elapsed,
	)

	return &EvaluationReport{Metrics: metrics, Duration: elapsed}, nil
}

func coerceEvaluationResult(data any) (handler.EvaluationResult, error) {
	switch v := data.(type) {
	case handler.EvaluationResult:
		return v, nil
	case *handler.EvaluationResult:
		if v == nil {
			return handler.EvaluationResult{}, fmt.Errorf("evaluation result is nil")
		}
		return *v, nil
	default:
		return handler.EvaluationResult{}, fmt.Errorf("result data is %T, not an evaluation result", data)
	}
}

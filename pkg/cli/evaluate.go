package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/changyy/captcha-ocr-devkit/pkg/infra/store"
	"github.com/changyy/captcha-ocr-devkit/pkg/pipeline"
)

func NewEvaluateCommand(root *RootCommand) *cobra.Command {
	var (
		inputDir    string
		modelPath   string
		handlerName string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a model against a labeled dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			evaluator, err := root.Registry().CreateEvaluate(handlerName)
			if err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}

			runs := root.openRunStore()
			defer runs.Close()

			start := time.Now()
			report, err := pipeline.Evaluate(cmd.Context(), evaluator, modelPath, inputDir)

			run := &store.Run{
				Kind:      store.RunEvaluate,
				Handler:   handlerName,
				ModelPath: modelPath,
				DataDir:   inputDir,
				Success:   err == nil,
				Duration:  time.Since(start).Seconds(),
			}
			if err != nil {
				run.Error = err.Error()
			} else {
				run.Metrics = map[string]float64{
					"accuracy":            report.Metrics.Accuracy,
					"character_accuracy":  report.Metrics.CharacterAccuracy,
					"total_samples":       float64(report.Metrics.TotalSamples),
					"correct_predictions": float64(report.Metrics.CorrectPredictions),
				}
			}
			if recErr := runs.Record(cmd.Context(), run); recErr != nil {
				PrintError(fmt.Errorf("record run: %w", recErr), root.OutputOptions())
			}

			if err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}

			return PrintOutput(map[string]any{
				"handler":             handlerName,
				"model_path":          modelPath,
				"accuracy":            report.Metrics.Accuracy,
				"character_accuracy":  report.Metrics.CharacterAccuracy,
				"total_samples":       report.Metrics.TotalSamples,
				"correct_predictions": report.Metrics.CorrectPredictions,
				"duration":            fmt.Sprintf("%.2fs", report.Duration.Seconds()),
			}, root.OutputOptions())
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory of labeled evaluation images (required)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Model artifact path (required)")
	cmd.Flags().StringVar(&handlerName, "handler", "demo", "Evaluate handler identifier")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("model")

	return cmd
}

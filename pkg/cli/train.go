package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/store"
	"github.com/changyy/captcha-ocr-devkit/pkg/pipeline"
)

func NewTrainCommand(root *RootCommand) *cobra.Command {
	var (
		inputDir    string
		outputPath  string
		handlerName string
		epochs      int
		batchSize   int
		lr          float64
		valSplit    float64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model with a train handler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.Config()
			if epochs == 0 {
				epochs = cfg.Training.Epochs
			}
			if batchSize == 0 {
				batchSize = cfg.Training.BatchSize
			}
			if lr == 0 {
				lr = cfg.Training.LearningRate
			}
			if valSplit == 0 {
				valSplit = cfg.Training.ValidationSplit
			}
			if outputPath == "" {
				outputPath = filepath.Join(cfg.Training.OutputDir, "model.json")
			}

			trainer, err := root.Registry().CreateTrain(handlerName)
			if err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}

			if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					PrintError(err, root.OutputOptions())
					return err
				}
			}

			trainingCfg := handler.TrainingConfig{
				InputDir:        inputDir,
				OutputPath:      outputPath,
				Epochs:          epochs,
				BatchSize:       batchSize,
				LearningRate:    lr,
				ValidationSplit: valSplit,
			}

			runs := root.openRunStore()
			defer runs.Close()

			start := time.Now()
			report, err := pipeline.Train(cmd.Context(), trainer, trainingCfg)
			recordTrainRun(cmd, root, runs, handlerName, trainingCfg, report, time.Since(start), err)
			if err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}

			return PrintOutput(map[string]any{
				"handler":       handlerName,
				"model_path":    outputPath,
				"total_images":  report.Artifact.DatasetInfo.TotalImages,
				"unique_labels": report.Artifact.DatasetInfo.UniqueLabels,
				"duration":      fmt.Sprintf("%.2fs", report.Duration.Seconds()),
			}, root.OutputOptions())
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory of labeled training images (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "m", "", "Model artifact output path")
	cmd.Flags().StringVar(&handlerName, "handler", "demo", "Train handler identifier")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Training epochs (default: config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Batch size (default: config)")
	cmd.Flags().Float64Var(&lr, "learning-rate", 0, "Learning rate (default: config)")
	cmd.Flags().Float64Var(&valSplit, "validation-split", 0, "Validation split (default: config)")
	cmd.MarkFlagRequired("input")

	return cmd
}

func recordTrainRun(cmd *cobra.Command, root *RootCommand, runs store.RunStore, handlerName string, cfg handler.TrainingConfig, report *pipeline.TrainingReport, elapsed time.Duration, trainErr error) {
	run := &store.Run{
		Kind:      store.RunTrain,
		Handler:   handlerName,
		ModelPath: cfg.OutputPath,
		DataDir:   cfg.InputDir,
		Success:   trainErr == nil,
		Duration:  elapsed.Seconds(),
	}
	if trainErr != nil {
		run.Error = trainErr.Error()
	}
	if report != nil && report.Artifact != nil {
		run.Metrics = map[string]float64{
			"total_images":  float64(report.Artifact.DatasetInfo.TotalImages),
			"unique_labels": float64(report.Artifact.DatasetInfo.UniqueLabels),
		}
	}
	if err := runs.Record(cmd.Context(), run); err != nil {
		PrintError(fmt.Errorf("record run: %w", err), root.OutputOptions())
	}
}

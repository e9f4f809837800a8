package handler

import "fmt"

// TrainingConfig carries the parameters for one training run. It is
// treated as immutable once handed to a Train handler.
type TrainingConfig struct {
	InputDir        string  `json:"input_dir" yaml:"input_dir"`
	OutputPath      string  `json:"output_path" yaml:"output_path"`
	Epochs          int     `json:"epochs" yaml:"epochs"`
	BatchSize       int     `json:"batch_size" yaml:"batch_size"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	ValidationSplit float64 `json:"validation_split" yaml:"validation_split"`
}

// Validate checks the numeric constraints on a TrainingConfig.
func (c TrainingConfig) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("training config: input_dir is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("training config: output_path is required")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("training config: epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("training config: batch_size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("training config: learning_rate must be positive, got %g", c.LearningRate)
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("training config: validation_split must be in [0,1), got %g", c.ValidationSplit)
	}
	return nil
}

// DatasetInfo summarizes the labeled dataset a model was trained on.
type DatasetInfo struct {
	TotalImages  int      `json:"total_images"`
	UniqueLabels int      `json:"unique_labels"`
	SampleLabels []string `json:"sample_labels"`
}

// EvaluationResult holds the accuracy metrics produced by an Evaluate
// handler.
type EvaluationResult struct {
	Accuracy           float64 `json:"accuracy"`
	CharacterAccuracy  float64 `json:"character_accuracy"`
	TotalSamples       int     `json:"total_samples"`
	CorrectPredictions int     `json:"correct_predictions"`
}

// accuracyTolerance absorbs float rounding when cross-checking
// correct_predictions/total_samples against the reported accuracy.
const accuracyTolerance = 1e-6

// Validate checks the numeric invariants of an EvaluationResult.
func (e EvaluationResult) Validate() error {
	if e.Accuracy < 0 || e.Accuracy > 1 {
		return fmt.Errorf("evaluation result: accuracy %g out of [0,1]", e.Accuracy)
	}
	if e.CharacterAccuracy < 0 || e.CharacterAccuracy > 1 {
		return fmt.Errorf("evaluation result: character_accuracy %g out of [0,1]", e.CharacterAccuracy)
	}
	if e.TotalSamples <= 0 {
		return fmt.Errorf("evaluation result: total_samples must be positive, got %d", e.TotalSamples)
	}
	if e.CorrectPredictions < 0 || e.CorrectPredictions > e.TotalSamples {
		return fmt.Errorf("evaluation result: correct_predictions %d out of [0,%d]",
			e.CorrectPredictions, e.TotalSamples)
	}
	want := float64(e.CorrectPredictions) / float64(e.TotalSamples)
	if diff := e.Accuracy - want; diff > accuracyTolerance || diff < -accuracyTolerance {
		return fmt.Errorf("evaluation result: accuracy %g does not match %d/%d",
			e.Accuracy, e.CorrectPredictions, e.TotalSamples)
	}
	return nil
}

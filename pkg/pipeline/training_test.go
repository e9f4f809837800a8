package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrain struct {
	name string
	// train decides the handler's behavior per test
	train func(cfg handler.TrainingConfig) handler.Result
}

func (f *fakeTrain) Name() string { return f.name }
func (f *fakeTrain) Info() map[string]any {
	return map[string]any{"name": f.name, "version": "1.0.0"}
}
func (f *fakeTrain) Train(cfg handler.TrainingConfig) handler.Result { return f.train(cfg) }

func datasetDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake image data"), 0o644))
	}
	return dir
}

func trainingConfigFor(inputDir, outputPath string) handler.TrainingConfig {
	return handler.TrainingConfig{
		InputDir:        inputDir,
		OutputPath:      outputPath,
		Epochs:          1,
		BatchSize:       32,
		LearningRate:    0.001,
		ValidationSplit: 0.2,
	}
}

func writingTrainHandler(artifact *handler.ModelArtifact) *fakeTrain {
	return &fakeTrain{
		name: "fake_train",
		train: func(cfg handler.TrainingConfig) handler.Result {
			a := *artifact
			a.TrainingConfig = cfg
			if err := handler.WriteArtifact(cfg.OutputPath, &a); err != nil {
				return handler.Fail(err.Error())
			}
			return handler.Ok(map[string]any{"model_path": cfg.OutputPath}, nil)
		},
	}
}

func conformantArtifact() *handler.ModelArtifact {
	return &handler.ModelArtifact{
		ModelType: "fake",
		DatasetInfo: handler.DatasetInfo{
			TotalImages:  6,
			UniqueLabels: 3,
			SampleLabels: []string{"abcd", "efgh", "ijkl"},
		},
	}
}

func TestTrain_Success(t *testing.T) {
	input := datasetDir(t, "abcd_001.png", "efgh_001.png")
	output := filepath.Join(t.TempDir(), "model.json")

	report, err := Train(context.Background(), writingTrainHandler(conformantArtifact()),
		trainingConfigFor(input, output))
	require.NoError(t, err)

	assert.Equal(t, "fake", report.Artifact.ModelType)
	assert.Equal(t, 6, report.Artifact.DatasetInfo.TotalImages)
	assert.GreaterOrEqual(t, report.Duration.Nanoseconds(), int64(0))
	assert.FileExists(t, output)
}

func TestTrain_MissingInputDir(t *testing.T) {
	output := filepath.Join(t.TempDir(), "model.json")
	cfg := trainingConfigFor(filepath.Join(t.TempDir(), "absent"), output)

	_, err := Train(context.Background(), writingTrainHandler(conformantArtifact()), cfg)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoFileExists(t, output)
}

func TestTrain_EmptyInputDir(t *testing.T) {
	cfg := trainingConfigFor(t.TempDir(), filepath.Join(t.TempDir(), "model.json"))

	_, err := Train(context.Background(), writingTrainHandler(conformantArtifact()), cfg)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrain_InvalidConfig(t *testing.T) {
	cfg := trainingConfigFor(datasetDir(t, "a_1.png"), filepath.Join(t.TempDir(), "model.json"))
	cfg.Epochs = 0

	_, err := Train(context.Background(), writingTrainHandler(conformantArtifact()), cfg)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrain_HandlerReportedFailure(t *testing.T) {
	th := &fakeTrain{name: "failing_train", train: func(cfg handler.TrainingConfig) handler.Result {
		return handler.Fail("dataset too noisy")
	}}
	cfg := trainingConfigFor(datasetDir(t, "a_1.png"), filepath.Join(t.TempDir(), "model.json"))

	_, err := Train(context.Background(), th, cfg)
	require.Error(t, err)
	assert.True(t, IsHandlerFailure(err))
	assert.Contains(t, err.Error(), "dataset too noisy")
	assert.NoFileExists(t, cfg.OutputPath)
}

func TestTrain_ContractViolation_NoArtifact(t *testing.T) {
	th := &fakeTrain{name: "lying_train", train: func(cfg handler.TrainingConfig) handler.Result {
		return handler.Ok("trained", nil) // claims success, writes nothing
	}}
	cfg := trainingConfigFor(datasetDir(t, "a_1.png"), filepath.Join(t.TempDir(), "model.json"))

	_, err := Train(context.Background(), th, cfg)
	assert.ErrorIs(t, err, ErrHandlerContract)
	assert.False(t, IsHandlerFailure(err))
}

func TestTrain_ContractViolation_MalformedArtifact(t *testing.T) {
	th := &fakeTrain{name: "sloppy_train", train: func(cfg handler.TrainingConfig) handler.Result {
		// missing model_type and dataset_info
		if err := os.WriteFile(cfg.OutputPath, []byte(`{"weights": [1,2,3]}`), 0o644); err != nil {
			return handler.Fail(err.Error())
		}
		return handler.Ok(nil, nil)
	}}
	cfg := trainingConfigFor(datasetDir(t, "a_1.png"), filepath.Join(t.TempDir(), "model.json"))

	_, err := Train(context.Background(), th, cfg)
	assert.ErrorIs(t, err, ErrHandlerContract)
}

func TestTrain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := trainingConfigFor(datasetDir(t, "a_1.png"), filepath.Join(t.TempDir(), "model.json"))
	_, err := Train(ctx, writingTrainHandler(conformantArtifact()), cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

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

type fakeEvaluate struct {
	name     string
	evaluate func(modelPath, targetDir string) handler.Result
}

func (f *fakeEvaluate) Name() string { return f.name }
func (f *fakeEvaluate) Info() map[string]any {
	return map[string]any{"name": f.name, "version": "1.0.0"}
}
func (f *fakeEvaluate) Evaluate(modelPath, targetDir string) handler.Result {
	return f.evaluate(modelPath, targetDir)
}

func modelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, handler.WriteArtifact(path, &handler.ModelArtifact{
		ModelType:      "fake",
		TrainingConfig: trainingConfigFor("./in", "./out"),
		DatasetInfo:    handler.DatasetInfo{TotalImages: 6, UniqueLabels: 3},
	}))
	return path
}

func validMetrics() handler.EvaluationResult {
	return handler.EvaluationResult{
		Accuracy:           0.5,
		CharacterAccuracy:  0.75,
		TotalSamples:       6,
		CorrectPredictions: 3,
	}
}

func TestEvaluate_Success(t *testing.T) {
	eh := &fakeEvaluate{name: "fake_evaluate", evaluate: func(modelPath, targetDir string) handler.Result {
		return handler.Ok(validMetrics(), nil)
	}}

	report, err := Evaluate(context.Background(), eh, modelFile(t), datasetDir(t, "abcd_001.png"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, report.Metrics.Accuracy)
	assert.Equal(t, 6, report.Metrics.TotalSamples)
}

func TestEvaluate_PointerMetrics(t *testing.T) {
	m := validMetrics()
	eh := &fakeEvaluate{name: "ptr_evaluate", evaluate: func(modelPath, targetDir string) handler.Result {
		return handler.Ok(&m, nil)
	}}

	report, err := Evaluate(context.Background(), eh, modelFile(t), datasetDir(t, "a_1.png"))
	require.NoError(t, err)
	assert.Equal(t, m, report.Metrics)
}

func TestEvaluate_MissingModel(t *testing.T) {
	eh := &fakeEvaluate{name: "e", evaluate: func(string, string) handler.Result {
		return handler.Ok(validMetrics(), nil)
	}}

	_, err := Evaluate(context.Background(), eh,
		filepath.Join(t.TempDir(), "absent.json"), datasetDir(t, "a_1.png"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvaluate_MissingTargetDir(t *testing.T) {
	eh := &fakeEvaluate{name: "e", evaluate: func(string, string) handler.Result {
		return handler.Ok(validMetrics(), nil)
	}}

	_, err := Evaluate(context.Background(), eh, modelFile(t), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvaluate_ModelPathIsDirectory(t *testing.T) {
	eh := &fakeEvaluate{name: "e", evaluate: func(string, string) handler.Result {
		return handler.Ok(validMetrics(), nil)
	}}

	_, err := Evaluate(context.Background(), eh, t.TempDir(), datasetDir(t, "a_1.png"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvaluate_HandlerReportedFailure(t *testing.T) {
	eh := &fakeEvaluate{name: "failing_evaluate", evaluate: func(string, string) handler.Result {
		return handler.Fail("model type mismatch")
	}}

	_, err := Evaluate(context.Background(), eh, modelFile(t), datasetDir(t, "a_1.png"))
	require.Error(t, err)
	assert.True(t, IsHandlerFailure(err))
	assert.Contains(t, err.Error(), "model type mismatch")
}

func TestEvaluate_ContractViolation_WrongDataType(t *testing.T) {
	eh := &fakeEvaluate{name: "odd_evaluate", evaluate: func(string, string) handler.Result {
		return handler.Ok("not a metrics struct", nil)
	}}

	_, err := Evaluate(context.Background(), eh, modelFile(t), datasetDir(t, "a_1.png"))
	assert.ErrorIs(t, err, ErrHandlerContract)
}

func TestEvaluate_ContractViolation_InvalidMetrics(t *testing.T) {
	tests := []struct {
		name    string
		metrics handler.EvaluationResult
	}{
		{"accuracy above one", handler.EvaluationResult{Accuracy: 1.2, TotalSamples: 2, CorrectPredictions: 2}},
		{"correct above total", handler.EvaluationResult{Accuracy: 1, TotalSamples: 2, CorrectPredictions: 5}},
		{"zero samples", handler.EvaluationResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eh := &fakeEvaluate{name: "bad_metrics", evaluate: func(string, string) handler.Result {
				return handler.Ok(tt.metrics, nil)
			}}
			_, err := Evaluate(context.Background(), eh, modelFile(t), datasetDir(t, "a_1.png"))
			assert.ErrorIs(t, err, ErrHandlerContract)
		})
	}
}

func TestEvaluate_DoesNotMutateModel(t *testing.T) {
	path := modelFile(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	eh := &fakeEvaluate{name: "e", evaluate: func(string, string) handler.Result {
		return handler.Ok(validMetrics(), nil)
	}}
	_, err = Evaluate(context.Background(), eh, path, datasetDir(t, "a_1.png"))
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

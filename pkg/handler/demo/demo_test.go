package demo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataset lays out 6 labeled files spanning 3 labels.
func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"abcd_001.png": "payload-abcd-1",
		"abcd_002.png": "payload-abcd-2",
		"wxyz_001.png": "payload-wxyz-1",
		"wxyz_002.png": "payload-wxyz-2",
		"test_001.png": "payload-test-1",
		"test_002.png": "payload-test-2",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func trainModel(t *testing.T, dataDir string) string {
	t.Helper()
	modelPath := filepath.Join(t.TempDir(), "model.json")
	result := newTrain(nil).Train(handler.TrainingConfig{
		InputDir:     dataDir,
		OutputPath:   modelPath,
		Epochs:       10,
		BatchSize:    32,
		LearningRate: 0.001,
	})
	require.True(t, result.Success(), result.Err())
	return modelPath
}

func TestBuildersRegistered(t *testing.T) {
	for _, name := range []string{"demo_preprocess", "demo_train", "demo_evaluate", "demo_ocr"} {
		builder, err := handler.LookupBuilder(name)
		require.NoError(t, err, name)

		h, err := builder(nil)
		require.NoError(t, err)
		assert.Equal(t, Name, h.Name())
		assert.Equal(t, version, handler.Version(h))
	}
}

func TestBuilder_NameOverride(t *testing.T) {
	builder, err := handler.LookupBuilder("demo_ocr")
	require.NoError(t, err)

	h, err := builder(map[string]any{"name": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", h.Name())
}

func TestLabelFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"abcd_001.png", "abcd"},
		{"abcd_extra_001.png", "abcd"},
		{"nolabel.png", ""},
		{"_001.png", ""},
		{"x_1.jpeg", "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, labelFromFilename(tt.filename), tt.filename)
	}
}

func TestScanDataset_SkipsUnlabeledAndNonImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"abcd_1.png", "nolabel.png", "notes_1.txt", "wxyz_1.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub_dir"), 0o755))

	samples, err := scanDataset(dir)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "abcd", samples[0].label)
	assert.Equal(t, "wxyz", samples[1].label)
}

func TestTrain_WritesArtifact(t *testing.T) {
	modelPath := trainModel(t, writeDataset(t))

	artifact, err := handler.LoadArtifact(modelPath)
	require.NoError(t, err)
	require.NoError(t, artifact.Validate())

	assert.Equal(t, modelType, artifact.ModelType)
	assert.Equal(t, 6, artifact.DatasetInfo.TotalImages)
	assert.Equal(t, 3, artifact.DatasetInfo.UniqueLabels)
	assert.ElementsMatch(t, []string{"abcd", "test", "wxyz"}, artifact.DatasetInfo.SampleLabels)

	model, err := decodeModel(artifact)
	require.NoError(t, err)
	assert.Len(t, model.Samples, 6)
	assert.Equal(t, []string{"abcd", "test", "wxyz"}, model.Labels)
}

func TestTrain_EmptyDirectory(t *testing.T) {
	result := newTrain(nil).Train(handler.TrainingConfig{
		InputDir:     t.TempDir(),
		OutputPath:   filepath.Join(t.TempDir(), "model.json"),
		Epochs:       1,
		BatchSize:    1,
		LearningRate: 0.1,
	})
	assert.False(t, result.Success())
	assert.Contains(t, result.Err(), "no labeled images")
}

func TestOCR_PredictSeenImage(t *testing.T) {
	modelPath := trainModel(t, writeDataset(t))

	ocr := newOCR(nil)
	require.True(t, ocr.LoadModel(modelPath))

	result := ocr.Predict([]byte("payload-wxyz-1"))
	require.True(t, result.Success())
	assert.Equal(t, "wxyz", result.Data())

	conf, ok := result.Confidence()
	require.True(t, ok)
	assert.Equal(t, 0.99, conf)
}

func TestOCR_PredictUnseenImageIsDeterministic(t *testing.T) {
	modelPath := trainModel(t, writeDataset(t))

	ocr := newOCR(nil)
	require.True(t, ocr.LoadModel(modelPath))

	first := ocr.Predict([]byte("never seen this"))
	require.True(t, first.Success())
	assert.Contains(t, []any{"abcd", "test", "wxyz"}, first.Data())

	second := ocr.Predict([]byte("never seen this"))
	assert.Equal(t, first.Data(), second.Data())

	conf, ok := first.Confidence()
	require.True(t, ok)
	assert.Equal(t, 0.25, conf)
}

func TestOCR_Failures(t *testing.T) {
	ocr := newOCR(nil)
	assert.False(t, ocr.Predict([]byte("img")).Success())
	assert.False(t, ocr.LoadModel(filepath.Join(t.TempDir(), "absent.json")))

	modelPath := trainModel(t, writeDataset(t))
	require.True(t, ocr.LoadModel(modelPath))
	assert.False(t, ocr.Predict(nil).Success())
}

func TestOCR_RejectsForeignModelType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, handler.WriteArtifact(path, &handler.ModelArtifact{
		ModelType: "cnn",
		TrainingConfig: handler.TrainingConfig{
			InputDir: "./in", OutputPath: path,
			Epochs: 1, BatchSize: 1, LearningRate: 0.1,
		},
		DatasetInfo: handler.DatasetInfo{TotalImages: 1, UniqueLabels: 1},
	}))

	assert.False(t, newOCR(nil).LoadModel(path))
}

func TestEvaluate_TrainingSetScoresPerfect(t *testing.T) {
	dataDir := writeDataset(t)
	modelPath := trainModel(t, dataDir)

	result := newEvaluate(nil).Evaluate(modelPath, dataDir)
	require.True(t, result.Success(), result.Err())

	metrics, ok := result.Data().(handler.EvaluationResult)
	require.True(t, ok)
	require.NoError(t, metrics.Validate())
	assert.Equal(t, 6, metrics.TotalSamples)
	assert.Equal(t, 6, metrics.CorrectPredictions)
	assert.Equal(t, 1.0, metrics.Accuracy)
	assert.Equal(t, 1.0, metrics.CharacterAccuracy)
}

func TestEvaluate_UnseenDataStaysInBounds(t *testing.T) {
	modelPath := trainModel(t, writeDataset(t))

	other := t.TempDir()
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("qqqq_%d.png", i)
		require.NoError(t, os.WriteFile(filepath.Join(other, name), []byte(name), 0o644))
	}

	result := newEvaluate(nil).Evaluate(modelPath, other)
	require.True(t, result.Success(), result.Err())

	metrics, ok := result.Data().(handler.EvaluationResult)
	require.True(t, ok)
	require.NoError(t, metrics.Validate())
	assert.Equal(t, 4, metrics.TotalSamples)
}

func TestEvaluate_MissingModel(t *testing.T) {
	result := newEvaluate(nil).Evaluate(filepath.Join(t.TempDir(), "absent.json"), t.TempDir())
	assert.False(t, result.Success())
}

func TestPreprocess_NormalizesRealImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 320, 120))
	for x := 0; x < 320; x++ {
		src.Set(x, 60, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	result := newPreprocess(nil).Process(buf.Bytes())
	require.True(t, result.Success())

	out, ok := result.Data().([]byte)
	require.True(t, ok)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, normalWidth, img.Bounds().Dx())
	assert.Equal(t, normalHeight, img.Bounds().Dy())
	assert.Equal(t, "png", result.Metadata()["source_format"])
}

func TestPreprocess_PassesThroughNonImageBytes(t *testing.T) {
	raw := []byte("not an image")
	result := newPreprocess(nil).Process(raw)
	require.True(t, result.Success())
	assert.Equal(t, raw, result.Data())
	assert.Equal(t, true, result.Metadata()["passthrough"])
}

func TestPreprocess_EmptyPayload(t *testing.T) {
	assert.False(t, newPreprocess(nil).Process(nil).Success())
}

// encodePNG renders a small solid-shade image so every label gets
// distinct pixel content.
func encodePNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: uint8(x % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestOCR_PreprocessedImageMatchesTraining(t *testing.T) {
	dir := t.TempDir()
	payloads := map[string][]byte{
		"abcd": encodePNG(t, 40),
		"wxyz": encodePNG(t, 140),
	}
	for label, data := range payloads {
		require.NoError(t, os.WriteFile(filepath.Join(dir, label+"_1.png"), data, 0o644))
	}
	modelPath := trainModel(t, dir)

	ocr := newOCR(nil)
	require.True(t, ocr.LoadModel(modelPath))
	pre := newPreprocess(nil)

	for label, data := range payloads {
		raw := ocr.Predict(data)
		require.True(t, raw.Success())
		assert.Equal(t, label, raw.Data())
		assert.Equal(t, true, raw.Metadata()["matched"], "raw bytes for %s", label)

		processed := pre.Process(data)
		require.True(t, processed.Success())
		normalized, ok := processed.Data().([]byte)
		require.True(t, ok)

		result := ocr.Predict(normalized)
		require.True(t, result.Success())
		assert.Equal(t, label, result.Data())
		assert.Equal(t, true, result.Metadata()["matched"], "normalized bytes for %s", label)
		conf, hasConf := result.Confidence()
		require.True(t, hasConf)
		assert.InDelta(t, 0.99, conf, 0.001)
	}
}

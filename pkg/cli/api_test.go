package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPICommand(t *testing.T) {
	root := quietRoot(t)

	cmd := NewAPICommand(root)
	assert.Equal(t, "api", cmd.Use)
	for _, flag := range []string{"listen", "model", "ocr-handler", "preprocess-handler"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
}

func TestAPICommand_UnknownOCRHandler(t *testing.T) {
	root := quietRoot(t)
	root.cfg.Serving.OCRHandler = "missing"

	cmd := NewAPICommand(root)
	cmd.SetContext(context.Background())
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
}

func TestAPICommand_MissingModel(t *testing.T) {
	root, _, _ := trainedRoot(t)
	root.cfg.Serving.OCRHandler = "demo"
	root.cfg.Serving.ModelPath = "/nonexistent/model.json"

	cmd := NewAPICommand(root)
	cmd.SetContext(context.Background())
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
}

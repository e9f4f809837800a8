package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changyy/captcha-ocr-devkit/pkg/config"
	_ "github.com/changyy/captcha-ocr-devkit/pkg/handler/demo"
	"github.com/changyy/captcha-ocr-devkit/pkg/registry"
)

func quietRoot(t *testing.T) *RootCommand {
	t.Helper()
	return &RootCommand{
		cfg:      config.Default(),
		registry: registry.New(),
		opts: &OutputOptions{
			Format: OutputTable,
			Writer: &bytes.Buffer{},
		},
	}
}

func TestInitCommand_Scaffolds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "handlers")
	root := quietRoot(t)

	cmd := NewInitCommand(root)
	require.NoError(t, cmd.Flags().Set("dir", dir))
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.RunE(cmd, nil))

	for _, name := range []string{"demo.yaml", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	m, err := registry.LoadManifest(filepath.Join(dir, "demo.yaml"))
	require.NoError(t, err)
	assert.Len(t, m.Handlers, 4)
}

func TestInitCommand_RefusesOverwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "handlers")
	root := quietRoot(t)

	cmd := NewInitCommand(root)
	require.NoError(t, cmd.Flags().Set("dir", dir))
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.RunE(cmd, nil))

	cmd.SetContext(context.Background())
	err := cmd.RunE(cmd, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateHandlerCommand(t *testing.T) {
	dir := t.TempDir()
	root := quietRoot(t)

	cmd := NewCreateHandlerCommand(root)
	require.NoError(t, cmd.Flags().Set("name", "my-ocr"))
	require.NoError(t, cmd.Flags().Set("dir", dir))
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.RunE(cmd, nil))

	m, err := registry.LoadManifest(filepath.Join(dir, "my-ocr.yaml"))
	require.NoError(t, err)
	require.Len(t, m.Handlers, 1)
	assert.Equal(t, "demo_ocr", m.Handlers[0].Builder)
	assert.Equal(t, "my-ocr", m.Handlers[0].Options["name"])

	reg := registry.New()
	_, err = reg.Discover(dir)
	require.NoError(t, err)
	h, err := reg.CreateOCR("my-ocr")
	require.NoError(t, err)
	assert.Equal(t, "my-ocr", h.Name())
}

func TestCreateHandlerCommand_RequiresName(t *testing.T) {
	root := quietRoot(t)

	cmd := NewCreateHandlerCommand(root)
	require.NoError(t, cmd.Flags().Set("dir", t.TempDir()))
	cmd.SetContext(context.Background())
	err := cmd.RunE(cmd, nil)
	assert.Error(t, err)
}

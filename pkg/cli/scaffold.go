package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/changyy/captcha-ocr-devkit/pkg/registry"
)

const handlersReadme = `# Handlers

Each YAML manifest in this directory declares one or more handlers.
A manifest entry names a compiled-in builder and passes it options:

    handlers:
      - builder: demo_ocr
        options:
          name: my-ocr

Manifests are loaded in filename order; when two manifests register
the same identifier for the same role, the later file wins. Roles are
detected from what each built handler actually implements.
`

func NewInitCommand(root *RootCommand) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a handlers directory with the demo manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = root.Config().General.HandlersDir
			}
			if err := scaffoldHandlers(dir); err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}
			PrintSuccess(fmt.Sprintf("handlers directory initialized at %s", dir), root.OutputOptions())
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Target handlers directory (default: config handlers_dir)")

	return cmd
}

func scaffoldHandlers(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create handlers directory: %w", err)
	}

	manifest := &registry.Manifest{
		Handlers: []registry.ManifestEntry{
			{Builder: "demo_preprocess"},
			{Builder: "demo_train"},
			{Builder: "demo_evaluate"},
			{Builder: "demo_ocr"},
		},
	}
	manifestPath := filepath.Join(dir, "demo.yaml")
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("manifest already exists: %s", manifestPath)
	}
	if err := registry.WriteManifest(manifestPath, manifest); err != nil {
		return fmt.Errorf("write demo manifest: %w", err)
	}

	readmePath := filepath.Join(dir, "README.md")
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		if err := os.WriteFile(readmePath, []byte(handlersReadme), 0o644); err != nil {
			return fmt.Errorf("write README: %w", err)
		}
	}

	return nil
}

func NewCreateHandlerCommand(root *RootCommand) *cobra.Command {
	var (
		name    string
		builder string
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "create-handler",
		Short: "Scaffold a manifest for a custom handler",
		Long: `Create a handler manifest referencing a registered builder under a
custom name. The builder must be compiled into the binary and
registered through the builder table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				err := fmt.Errorf("--name is required")
				PrintError(err, root.OutputOptions())
				return err
			}
			if dir == "" {
				dir = root.Config().General.HandlersDir
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}

			manifest := &registry.Manifest{
				Handlers: []registry.ManifestEntry{
					{
						Builder: builder,
						Options: map[string]any{"name": name},
					},
				},
			}
			path := filepath.Join(dir, name+".yaml")
			if _, err := os.Stat(path); err == nil {
				err = fmt.Errorf("manifest already exists: %s", path)
				PrintError(err, root.OutputOptions())
				return err
			}
			if err := registry.WriteManifest(path, manifest); err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}

			PrintSuccess(fmt.Sprintf("handler manifest created: %s", path), root.OutputOptions())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Handler identifier (required)")
	cmd.Flags().StringVar(&builder, "builder", "demo_ocr", "Registered builder to back the handler")
	cmd.Flags().StringVar(&dir, "dir", "", "Target handlers directory (default: config handlers_dir)")

	return cmd
}

package cli

import (
	"github.com/spf13/cobra"
)

type handlerRow struct {
	Role       string `json:"role" yaml:"role"`
	Identifier string `json:"identifier" yaml:"identifier"`
	Version    string `json:"version" yaml:"version"`
	Source     string `json:"source" yaml:"source"`
}

func NewHandlersCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List discovered handlers",
		Long:  `Show every handler registered from the handlers directory, grouped by role.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := root.Registry()
			descriptors := reg.Descriptors()

			rows := make([]handlerRow, 0, len(descriptors))
			for _, d := range descriptors {
				rows = append(rows, handlerRow{
					Role:       string(d.Role),
					Identifier: d.Identifier,
					Version:    d.Version,
					Source:     d.Source,
				})
			}

			if len(rows) == 0 {
				PrintSuccess("no handlers discovered, run 'captcha-ocr-devkit init' to scaffold the demo set", root.OutputOptions())
				return nil
			}
			return PrintOutput(rows, root.OutputOptions())
		},
	}
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/changyy/captcha-ocr-devkit/pkg/infra/store"
)

type runRow struct {
	ID       string  `json:"id" yaml:"id"`
	Kind     string  `json:"kind" yaml:"kind"`
	Handler  string  `json:"handler" yaml:"handler"`
	Success  bool    `json:"success" yaml:"success"`
	Duration float64 `json:"duration" yaml:"duration"`
	Created  string  `json:"created" yaml:"created"`
}

func NewRunsCommand(root *RootCommand) *cobra.Command {
	var (
		kind    string
		handler string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List training and evaluation run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs := root.openRunStore()
			defer runs.Close()

			filter := store.RunFilter{
				Kind:    store.RunKind(kind),
				Handler: handler,
				Limit:   limit,
			}
			list, total, err := runs.List(cmd.Context(), filter)
			if err != nil {
				PrintError(err, root.OutputOptions())
				return err
			}

			rows := make([]runRow, 0, len(list))
			for _, r := range list {
				rows = append(rows, runRow{
					ID:       r.ID,
					Kind:     string(r.Kind),
					Handler:  r.Handler,
					Success:  r.Success,
					Duration: r.Duration,
					Created:  time.Unix(r.CreatedAt, 0).Format(time.RFC3339),
				})
			}

			if len(rows) == 0 {
				PrintSuccess("no runs recorded", root.OutputOptions())
				return nil
			}
			if err := PrintOutput(rows, root.OutputOptions()); err != nil {
				return err
			}
			if total > len(rows) {
				PrintSuccess(fmt.Sprintf("showing %d of %d runs", len(rows), total), root.OutputOptions())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by run kind (train, evaluate)")
	cmd.Flags().StringVar(&handler, "handler", "", "Filter by handler identifier")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"chat-with-docs/internal/config"
	"chat-with-docs/internal/helper"
)

func newStatsCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many chunks are indexed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			index, err := app.OpenIndex(ctx, app.cfg)
			if err != nil {
				return err
			}
			defer index.Close()
			n, err := index.Count(ctx)
			if err != nil {
				return err
			}
			vs := app.cfg.VectorStore
			if asJSON {
				return helper.PrettyPrint(app.Out, map[string]any{
					"backend":    vs.Backend,
					"collection": vs.Collection,
					"path":       vs.Path,
					"chunks":     n,
				})
			}
			fmt.Fprintf(app.Out, "%s %s (%s)\n", helper.TitleStyle.Render("Vector store:"), vs.Backend, storeLocation(app))
			fmt.Fprintf(app.Out, "%s %d\n", helper.TitleStyle.Render("Indexed chunks:"), n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func storeLocation(app *App) string {
	vs := app.cfg.VectorStore
	switch vs.Backend {
	case config.BackendPGVector:
		return "postgres"
	case config.BackendQdrant:
		return fmt.Sprintf("%s:%d/%s", vs.Host, vs.Port, vs.Collection)
	case config.BackendMemory:
		return "in-memory"
	default:
		return vs.Path
	}
}

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chat-with-docs/internal/helper"
)

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "chat-with-docs",
		Short:         "Ask questions about your local documents",
		Long:          "Index PDF, DOCX, image and office files from a data folder into a local vector store, then answer questions from them with a language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup()
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default ~/.chat_with_docs/config.yaml)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newPopulateCmd(app),
		newQueryCmd(app),
		newStatsCmd(app),
		newConfigCmd(app),
	)
	return root
}

// Execute runs the CLI and reports the final error on stderr.
func Execute(ctx context.Context) int {
	app := NewApp()
	if err := NewRootCmd(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, helper.ErrorStyle.Render("Error: ")+err.Error())
		return 1
	}
	return 0
}

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chat-with-docs/internal/config"
	"chat-with-docs/internal/helper"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(app.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", app.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(app.configPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, helper.SuccessStyle.Render("Wrote "+app.configPath))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(app.cfg.Masked())
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, helper.MutedStyle.Render("# "+app.configPath))
			_, err = app.Out.Write(data)
			if err != nil {
				return err
			}
			if err := app.cfg.Validate(); err != nil {
				fmt.Fprintln(app.Out, helper.WarnStyle.Render("# not usable yet: "+err.Error()))
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the inference backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			if err := app.backend.Ping(cmd.Context()); err != nil {
				return err
			}

			line := fmt.Sprintf("backend %s (%s, model %s) is reachable", app.cfg.Backend.URL, app.backend.Dialect(), app.backend.Model())
			if version, err := app.backend.Version(cmd.Context()); err == nil && version != "" {
				line += ", server version " + version
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	}
}

package cmd

import (
	"encoding/json"
	"fmt"

	memoryrender "github.com/bnema/askdb/internal/adapters/render/memory"
	"github.com/spf13/cobra"
)

func newBackupCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage record store backups",
	}

	cmd.AddCommand(
		newBackupListCmd(state),
		newBackupCreateCmd(state),
	)

	return cmd
}

func newBackupListCmd(state *cliState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			backups, err := app.store.ListBackups(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(backups)
			}

			rendered, err := app.renderBackups(backups, memoryrender.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render backups: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newBackupCreateCmd(state *cliState) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the record store now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			backup, err := app.store.CreateBackup(cmd.Context(), comment, false)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", backup.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "manual backup", "note stored with the backup")
	return cmd
}

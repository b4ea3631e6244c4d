package cmd

import (
	"encoding/json"
	"fmt"

	memoryrender "github.com/bnema/askdb/internal/adapters/render/memory"
	"github.com/spf13/cobra"
)

func newMemoryCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the result memory cache",
	}

	cmd.AddCommand(
		newMemoryListCmd(state),
		newMemoryShowCmd(state),
		newMemoryDeleteCmd(state),
		newMemorySweepCmd(state),
	)

	return cmd
}

func newMemoryListCmd(state *cliState) *cobra.Command {
	var (
		kind   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			summaries, err := app.cache.List(cmd.Context(), kind)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			rendered, err := app.renderSummaries(summaries, memoryrender.RenderOptions{Now: app.now(), TTL: app.cfg.Memory.TTL})
			if err != nil {
				return fmt.Errorf("render memory list: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list results of this kind")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newMemoryShowCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a cached result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			record, err := app.cache.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"id":          record.ID,
				"kind":        record.Kind,
				"description": record.Description,
				"created_at":  record.CreatedAt,
				"item_count":  record.ItemCount,
				"payload":     record.Payload,
			})
		},
	}
}

func newMemoryDeleteCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a cached result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			deleted, err := app.cache.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s was not in memory\n", args[0])
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}

func newMemorySweepCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired and unreadable cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			result, err := app.cache.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d (corrupt %d), kept %d\n", result.Removed, result.Corrupt, result.Kept)
			return err
		},
	}
}

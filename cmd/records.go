package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/askdb/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// recordImport is the JSON shape accepted by records import. Photos are
// base64 strings.
type recordImport struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Phone string   `json:"phone"`
	Notes string   `json:"notes"`
	Tags  []string `json:"tags"`
	Photo []byte   `json:"photo"`
}

func newRecordsCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage the local record store directly",
	}

	cmd.AddCommand(
		newRecordsImportCmd(state),
		newRecordsListCmd(state),
	)

	return cmd
}

func newRecordsImportCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import records from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var entries []recordImport
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("decode import file: %w", err)
			}

			for i, entry := range entries {
				if strings.TrimSpace(entry.Name) == "" {
					return fmt.Errorf("record %d: name is required", i)
				}
				id := strings.TrimSpace(entry.ID)
				if id == "" {
					id = "rec-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
				}
				err := app.store.Save(cmd.Context(), domain.Record{
					ID:    domain.RecordID(id),
					Name:  entry.Name,
					Email: entry.Email,
					Phone: entry.Phone,
					Notes: entry.Notes,
					Tags:  entry.Tags,
					Photo: entry.Photo,
				})
				if err != nil {
					return err
				}
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", len(entries))
			return err
		},
	}
}

func newRecordsListCmd(state *cliState) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.load(cmd)
			if err != nil {
				return err
			}

			records, err := app.store.Search(cmd.Context(), query, 0)
			if err != nil {
				return err
			}

			for _, record := range records {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", record.ID, record.Name, record.Email, strings.Join(record.Tags, ","))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "only list records matching this text")
	return cmd
}

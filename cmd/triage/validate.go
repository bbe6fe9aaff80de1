package main

import (
	"encoding/json"

	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		folder string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "validate <workflow>...",
		Short: "Check workflows for structural problems",
		Long: `Reports missing entry points, unreachable and disconnected steps, empty content
and broken option targets. Arguments are workflow files or names in the configured store.
Exits non-zero when any workflow is not executable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed error
			for _, arg := range args {
				doc, err := a.document(cmd.Context(), arg, folder)
				if err != nil {
					return err
				}
				m, err := graph.FromDocument(doc)
				if err != nil {
					return err
				}
				r := validator.Validate(m)

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(r); err != nil {
						return err
					}
				} else {
					cli.PrintReport(cmd.OutOrStdout(), doc.Metadata.Name, r)
				}
				if err := r.Err(); err != nil && failed == nil {
					failed = err
				}
			}
			return failed
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Folder of stored workflows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	return cmd
}

package main

import (
	"fmt"

	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Store workflow files in the configured backend",
		Long: `Decodes each file and saves it under its name (and --folder) in the configured
store, replacing any previous version. Workflows that are not executable are stored
anyway and reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backends()
			if err != nil {
				return err
			}
			defer b.Close()

			for _, path := range args {
				doc, err := cli.ReadWorkflow(path)
				if err != nil {
					return err
				}
				if folder != "" {
					doc.Metadata.Folder = folder
				}
				saved, err := b.Documents.Save(cmd.Context(), doc)
				if err != nil {
					return fmt.Errorf("save %s: %w", path, err)
				}
				m, err := graph.FromDocument(saved)
				if err != nil {
					return err
				}
				cli.PrintReport(cmd.OutOrStdout(), saved.Metadata.Key().String(), validator.Validate(m))
				a.logger.Info("workflow imported", "workflow", saved.Metadata.Key().String(), "store", a.cfg.Store)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Folder to store the workflows in")
	return cmd
}

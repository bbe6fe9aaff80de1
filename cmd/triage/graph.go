package main

import (
	"fmt"

	presentation "github.com/aretw0/triage/internal/presentation/graph"
	"github.com/spf13/cobra"
)

func newGraphCmd(a *app) *cobra.Command {
	var folder, sessionID string
	cmd := &cobra.Command{
		Use:   "graph <workflow>",
		Short: "Export the workflow as a Mermaid diagram",
		Long: `Prints a Mermaid flowchart of the workflow. With --session the visited steps
and the current step of that session are highlighted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.document(cmd.Context(), args[0], folder)
			if err != nil {
				return err
			}

			var overlay *presentation.GraphOverlay
			if sessionID != "" {
				b, err := a.backends()
				if err != nil {
					return err
				}
				defer b.Close()
				s, err := b.Sessions.Load(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				overlay = presentation.OverlayFromState(s.State)
			}

			fmt.Fprint(cmd.OutOrStdout(), presentation.GenerateMermaid(doc.Nodes, doc.Edges, overlay))
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Folder of stored workflows")
	cmd.Flags().StringVar(&sessionID, "session", "", "Highlight the progress of a session")
	return cmd
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/internal/presentation/tui"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		folder, sessionID string
		asJSON, noBanner  bool
	)
	cmd := &cobra.Command{
		Use:   "run [workflow]",
		Short: "Walk through a workflow interactively",
		Long: `Starts a guided session and asks for an answer at every step. Options can be
picked by number or id; yes/no questions also accept y and n. The session is stored
with the configured backend: end the input or type :pause to leave, and continue later
with --session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && sessionID == "" {
				return cmd.Usage()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := a.backends()
			if err != nil {
				return err
			}
			defer b.Close()

			opts := cli.RunOptions{
				SessionID: sessionID,
				JSON:      asJSON,
				In:        cmd.InOrStdin(),
				Out:       cmd.OutOrStdout(),
				Render:    tui.NewRenderer(),
				Logger:    a.logger,
			}
			if len(args) == 1 {
				opts.Workflow = domain.DocumentKey{Name: args[0], Folder: folder}
				if cli.IsWorkflowFile(args[0]) {
					doc, err := cli.ReadWorkflow(args[0])
					if err != nil {
						return err
					}
					// Files are served from memory; sessions still go to the configured store.
					b.Documents = memory.NewDocuments(doc)
					opts.Workflow = doc.Metadata.Key()
				}
			}

			if !asJSON && !noBanner && term.IsTerminal(int(os.Stdout.Fd())) {
				tui.PrintBanner(cmd.OutOrStdout())
			}
			a.logger.Debug("running", "version", triage.Version, "store", a.cfg.Store)

			_, err = cli.Run(ctx, b.Manager(a.logger), opts)
			return err
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Folder of stored workflows")
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume a stored session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the finished session as JSON")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "Do not print the banner")
	return cmd
}

package main

import (
	"context"
	"log/slog"

	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state resolved before any subcommand runs.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "triage",
		Short: "Triage authors and runs guided diagnostic procedures",
		Long: `Triage treats a troubleshooting procedure as a graph of typed steps.
It validates workflows, renders them as Mermaid diagrams, walks operators through
them in the terminal and exposes them over HTTP and the Model Context Protocol.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger(cmd.ErrOrStderr())
			if cfg.ConfigFile != "" {
				a.logger.Debug("config loaded", "file", cfg.ConfigFile)
			}
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newValidateCmd(a),
		newGraphCmd(a),
		newRunCmd(a),
		newConvertCmd(a),
		newImportCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

// backends opens the configured stores. The caller closes them.
func (a *app) backends() (*cli.Backends, error) {
	return cli.Open(a.cfg)
}

// document resolves arg as a workflow file or, failing that, as a stored workflow.
func (a *app) document(ctx context.Context, arg, folder string) (*domain.Document, error) {
	if cli.IsWorkflowFile(arg) {
		return cli.ReadWorkflow(arg)
	}
	b, err := a.backends()
	if err != nil {
		return nil, err
	}
	defer b.Close()

	doc, err := b.Documents.Load(ctx, arg, folder)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &domain.NotFoundError{Kind: "workflow", ID: domain.DocumentKey{Name: arg, Folder: folder}.String()}
	}
	return doc, nil
}

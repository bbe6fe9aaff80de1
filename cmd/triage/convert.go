package main

import (
	"fmt"
	"os"

	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/spf13/cobra"
)

func newConvertCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Convert a workflow file between JSON and YAML",
		Long: `Reads a workflow file, checks it and writes it in the other format. The output
format comes from the output file extension, or from --to when writing to stdout.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := cli.ReadWorkflow(args[0])
			if err != nil {
				return err
			}

			format := codec.FormatYAML
			if to != "" {
				if format, err = codec.ParseFormat(to); err != nil {
					return err
				}
			} else if len(args) == 2 {
				if format, err = codec.FormatFromPath(args[1]); err != nil {
					return err
				}
			} else if in, _ := codec.FormatFromPath(args[0]); in == codec.FormatYAML {
				format = codec.FormatJSON
			}

			data, err := codec.Encode(doc, format)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}
			a.logger.Info("workflow converted", "from", args[0], "to", args[1], "format", format)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Output format: json or yaml")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func newModulesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List available modules with their options and output columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manifests := reconciler.All()

			var (
				data []byte
				err  error
			)
			switch format {
			case "yaml":
				data, err = yaml.MarshalWithOptions(manifests, yaml.Indent(2), yaml.IndentSequence(false))
			case "json":
				data, err = json.MarshalIndent(manifests, "", "  ")
				data = append(data, '\n')
			default:
				return fmt.Errorf("invalid format %q: must be one of: yaml, json", format)
			}
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json")
	return cmd
}

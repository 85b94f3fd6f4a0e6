package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docminer/internal/llm"
	"github.com/joseph-ayodele/docminer/internal/schema"
)

func newDescribeCmd(a *app) *cobra.Command {
	var (
		schemaPath string
		sample     string
		jsonSchema bool
	)
	cmd := &cobra.Command{
		Use:   "describe --schema schema.yaml",
		Short: "Validate a schema and print how the model will see it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := schema.LoadFile(schemaPath)
			if err != nil {
				return err
			}
			switch {
			case sample != "":
				fmt.Fprintln(a.stdout, llm.BuildPrompt(sc, sample, llm.PromptOptions{}))
			case jsonSchema:
				b, err := json.MarshalIndent(sc.JSONSchema(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(b))
			default:
				fmt.Fprintf(a.stdout, "output format: %s\n", sc.Format())
				fmt.Fprintln(a.stdout, sc.Describe())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema declaration file (YAML or JSON)")
	cmd.Flags().StringVar(&sample, "prompt", "", "print the full prompt for this sample text")
	cmd.Flags().BoolVar(&jsonSchema, "json-schema", false, "print the derived JSON Schema")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

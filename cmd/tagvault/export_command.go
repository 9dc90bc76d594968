package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/tagvault/pkg/tagvault/query"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var records bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored tags as JSON",
		Long:  "Export a sorted JSON array of tag names, or full records with --records.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			tags, err := st.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			var payload any = query.Names(tags)
			if records {
				payload = tags
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			if err := writeJSON(w, payload); err != nil {
				return err
			}
			if outPath != "" && outPath != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d tags to %s\n", len(tags), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&records, "records", false, "Export id, name, category and created_at for every tag")
	return cmd
}

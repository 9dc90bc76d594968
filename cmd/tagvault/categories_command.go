package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

type categoryCount struct {
	Position int    `json:"position"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
}

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Show the category taxonomy with tag counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := st.CategoryCounts(cmd.Context())
			if err != nil {
				return err
			}

			labels := taxonomy.Default().Labels()
			out := make([]categoryCount, 0, len(labels))
			for i, label := range labels {
				out = append(out, categoryCount{Position: i + 1, Label: label, Count: counts[label]})
			}

			w := cmd.OutOrStdout()
			if jsonOut || !isTerminal(w) {
				return writeJSON(w, out)
			}

			rows := make([][]string, 0, len(out))
			for _, c := range out {
				rows = append(rows, []string{strconv.Itoa(c.Position), c.Label, strconv.Itoa(c.Count)})
			}
			fmt.Fprintln(w, renderTable([]string{"#", "Category", "Tags"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON even on a terminal")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/tagvault/pkg/tagvault/query"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var search string
	var categories []string
	var sortFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			sortBy, err := query.ParseSort(sortFlag)
			if err != nil {
				return err
			}

			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			tags, err := st.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			tags = query.Filter{Search: search, Categories: categories, Sort: sortBy}.Apply(tags)

			out := cmd.OutOrStdout()
			if jsonOut || !isTerminal(out) {
				return writeJSON(out, tags)
			}

			rows := make([][]string, 0, len(tags))
			for _, tag := range tags {
				rows = append(rows, []string{tag.Name, tag.Category, tag.CreatedAt.Format("2006-01-02")})
			}
			fmt.Fprintln(out, renderTable([]string{"Tag", "Category", "Added"}, rows, nil))
			fmt.Fprintf(out, "%d tags\n", len(tags))
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive substring match on the tag name")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "Only tags in this category (repeatable)")
	cmd.Flags().StringVar(&sortFlag, "sort", "category", "Sort order: category, az or za")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON even on a terminal")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var dbFlag string
	var storeFlag string

	ctx := newCommandContext(&configFlag, &dbFlag, &storeFlag)

	rootCmd := &cobra.Command{
		Use:           "tagvault",
		Short:         "Collect, categorize and browse music style tags",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite path or Postgres DSN (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Store driver: sqlite, postgres or memory (overrides config)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newIngestCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newCategoriesCommand(ctx))

	return rootCmd
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "taskchat",
		Short: "Task tracking and threaded chat backend",
		// tanpa subcommand: jalankan server
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}
	var promoteAdmin []string
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), promoteAdmin)
		},
	}
	migrate.Flags().StringSliceVar(&promoteAdmin, "promote-admin", nil, "emails of registered users to grant the admin role")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and websocket server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe()
			},
		},
		migrate,
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

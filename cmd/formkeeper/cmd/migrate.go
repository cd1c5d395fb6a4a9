package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/formkeeper/internal/core/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			applied, err := db.MigrateUp(database)
			if err != nil {
				return err
			}
			for _, id := range applied {
				logger.Info("migration applied", "migration_id", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", len(applied))
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			statuses, err := db.MigrateStatus(database)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
			for _, s := range statuses {
				if !s.Applied {
					fmt.Fprintf(w, "%s\tpending\t-\t-\n", s.ID)
					continue
				}
				appliedAt := "-"
				if s.AppliedAt != nil {
					appliedAt = s.AppliedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\tapplied\t%s\t%dms\n", s.ID, appliedAt, s.ExecutionMs)
			}
			return w.Flush()
		},
	})

	return migrateCmd
}

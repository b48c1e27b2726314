package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/db"
	"github.com/jingkaihe/pluginreg/pkg/db/migrations"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Install state database commands",
	Long:  `Commands for managing the install state database (migration status, rollback).`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	Long:  `Shows the applied and pending migrations of the install state database.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		exitOnError(runDBStatusCommand(cmd.Context(), cmd.OutOrStdout(), jsonOutput), "failed to get migration status")
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last database migration",
	Long:  `Rolls back the most recently applied migration of the install state database.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		exitOnError(runDBRollbackCommand(cmd.Context()), "failed to rollback migration")
	},
}

func init() {
	dbStatusCmd.Flags().Bool("json", false, "Print migration status as JSON")
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	rootCmd.AddCommand(dbCmd)
}

// withMigrationRunner opens the state database without migrating it, so
// status reports pending migrations as they are.
func withMigrationRunner(ctx context.Context, fn func(path string, r *db.MigrationRunner) error) error {
	path, err := stateDBPath()
	if err != nil {
		return err
	}
	sqlDB, err := db.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "failed to open state database %s", path)
	}
	defer sqlDB.Close()

	return fn(path, db.NewMigrationRunner(sqlDB))
}

func runDBStatusCommand(ctx context.Context, w io.Writer, jsonOutput bool) error {
	return withMigrationRunner(ctx, func(path string, r *db.MigrationRunner) error {
		statuses, err := r.Status(ctx, migrations.All())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(w, statuses)
		}

		presenter.Section("Database Migration Status")
		presenter.Field("Database", path)

		applied := 0
		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			when := "pending"
			if s.Applied() {
				applied++
				when = s.AppliedAt.Local().Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []string{strconv.FormatInt(s.Version, 10), s.Description, when})
		}
		presenter.Table([]string{"VERSION", "DESCRIPTION", "APPLIED"}, rows)
		presenter.Info(fmt.Sprintf("Applied: %d/%d migrations", applied, len(statuses)))
		return nil
	})
}

func runDBRollbackCommand(ctx context.Context) error {
	return withMigrationRunner(ctx, func(_ string, r *db.MigrationRunner) error {
		applied, err := r.GetAppliedVersions(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			presenter.Warning("No migrations to rollback")
			return nil
		}

		last := applied[len(applied)-1]
		var description string
		for _, m := range migrations.All() {
			if m.Version == last {
				description = m.Description
				break
			}
		}

		presenter.Info(fmt.Sprintf("Rolling back migration %d: %s", last, description))
		if err := r.Rollback(ctx, migrations.All()); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Successfully rolled back migration %d", last))
		return nil
	})
}

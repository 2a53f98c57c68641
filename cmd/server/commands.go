package main

import (
	"fmt"
	"os"

	"github.com/diewo77/ap-invoices/internal/db"
	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/diewo77/ap-invoices/internal/services"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create or update the invoices and invoice_lines tables.

By default the schema is derived from the gorm models. With --sql the
embedded SQL migrations are applied through golang-migrate (Postgres only).`,
	Example: `  ap-invoices migrate
  ap-invoices migrate --sql`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := logger.WithComponent("migrate")
		useSQL, _ := cmd.Flags().GetBool("sql")

		if useSQL {
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("--sql requires DB_DRIVER=postgres, got %q", cfg.Database.Driver)
			}
			if err := db.MigrateSQL(cfg.Database.MigrationURL()); err != nil {
				return err
			}
			log.Info().Msg("sql migrations applied")
			return nil
		}

		conn, err := db.Open(cfg.Database, false)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		log.Info().Msg("schema migrated")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute invoice_amount and to_usd for every stored invoice",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conn, err := openStore()
		if err != nil {
			return err
		}
		report, err := services.NewInvoiceService(conn).RepairAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d repaired=%d conflicts=%d\n",
			report.Scanned, report.Repaired, report.Conflicts)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load invoices from a JSON file",
	Long: `Load invoices from a JSON array of {"invoice_header": ..., "invoice_lines": [...]}
documents. Invoices whose number is already stored are skipped.`,
	Example: `  ap-invoices seed --file testdata/invoices.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()

		conn, err := openStore()
		if err != nil {
			return err
		}
		report, err := db.Seed(cmd.Context(), conn, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d skipped=%d\n", report.Inserted, report.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, reconcileCmd, seedCmd)

	migrateCmd.Flags().Bool("sql", false, "Apply embedded SQL migrations with golang-migrate")
	seedCmd.Flags().StringP("file", "f", "", "Path to the invoices JSON file [REQUIRED]")
	_ = seedCmd.MarkFlagRequired("file")
}

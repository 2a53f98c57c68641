package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/ap-invoices/internal/assistant"
	"github.com/diewo77/ap-invoices/internal/config"
	"github.com/diewo77/ap-invoices/internal/db"
	"github.com/diewo77/ap-invoices/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "dev"

// cfg is loaded once before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ap-invoices",
	Short: "Accounts-payable invoice dashboard API",
	Long: `ap-invoices serves the invoice dashboard API: listing, editing,
analytics, Excel export and a natural-language assistant.

Without a subcommand it starts the HTTP server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables from .env file
		_ = godotenv.Load()

		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		return logger.Setup(cfg.Log)
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		l := logger.WithComponent("cmd")
		l.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// openStore connects to the database. The schema is migrated when
// MIGRATIONS is set, and always for sqlite.
func openStore() (*gorm.DB, error) {
	conn, err := db.Open(cfg.Database, cfg.Log.Level == "debug")
	if err != nil {
		return nil, err
	}
	if cfg.App.Migrations || cfg.Database.Driver == "sqlite" {
		if err := db.Migrate(conn); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := openStore()
	if err != nil {
		return err
	}

	model, err := assistant.NewModel(ctx, cfg.Assistant)
	switch {
	case errors.Is(err, assistant.ErrNotConfigured):
		log.Warn().Str("provider", cfg.Assistant.Provider).Msg("assistant API key not set, queries will report needsApiKey")
		model = nil
	case err != nil:
		return err
	default:
		if c, ok := model.(io.Closer); ok {
			defer c.Close()
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(conn, cfg, model),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("dev", cfg.App.Dev).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped gracefully")
	return nil
}

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/formkeeper/internal/core/db"
	"github.com/solatis/formkeeper/internal/logging"
	"github.com/spf13/cobra"
)

// Version is the formkeeper release version.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	logger = logging.NewNop()
)

// NewRootCmd builds the formkeeper command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "formkeeper",
		Short:         "FormKeeper dynamic form engine",
		Long:          `FormKeeper resolves declarative form specifications against data snapshots and serves stored specs over gRPC and HTTP.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logLevel, logFormat)
			if err != nil {
				return err
			}
			logger = l
			slog.SetDefault(l)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")

	rootCmd.AddCommand(
		newResolveCmd(),
		newLintCmd(),
		newMigrateCmd(),
		newAPIKeyCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// Execute runs the command tree, printing the error to stderr on failure.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		return err
	}
	return nil
}

// openDB opens the database named by --db-url.
func openDB() (*sqlx.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

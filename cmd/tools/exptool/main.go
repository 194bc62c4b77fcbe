// cmd/tools/exptool/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codr1/Excursions/internal/config"
)

var (
	configPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "exptool",
	Short: "Maintenance tasks for the Excursions database",
	Long: `exptool runs schema migrations and loads the demo catalog.

The database file comes from --db, or from the database section of --config.

Examples:
  exptool migrate up
  exptool migrate down --steps 1
  exptool migrate version --db build/db/excursions.db
  exptool seed`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database (overrides --config)")
	rootCmd.AddCommand(newMigrateCmd(), newSeedCmd())
}

// databasePath resolves the SQLite file the command operates on and makes
// sure its directory exists.
func databasePath() (string, error) {
	path := dbPath
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return "", err
		}
		path = cfg.Database.Filename
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return abs, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

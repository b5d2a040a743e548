package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
)

var (
	// Command-line flags
	configFiles []string
	logLevel    string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "screener",
	Short:         "Stock snapshot scraper, loader and query API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(scrapeCmd, loadCmd, reprocessCmd, refreshCmd, migrateCmd, serveCmd, versionCmd)
}

// loadConfig resolves configuration in order: defaults, files, .env and
// environment, flags. Then it builds the logger.
func loadConfig() error {
	// .env is optional
	_ = godotenv.Load()

	if len(configFiles) == 0 {
		if _, err := os.Stat("screener.toml"); err == nil {
			configFiles = append(configFiles, "screener.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}

	common.ApplyFlagOverrides(config, 0, "", logLevel)
	logger = common.SetupLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("backend", config.Storage.Backend).
		Str("sqlite_path", config.Storage.SQLite.Path).
		Str("log_level", config.Logging.Level).
		Msg("Configuration loaded")

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Command failed")
		} else {
			common.GetLogger().Error().Err(err).Msg("Command failed")
		}
		os.Exit(1)
	}
}

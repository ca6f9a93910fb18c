package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/logger"

	// Store backends register themselves with the database package.
	_ "github.com/kozaktomas/face-matcher/internal/database/mariadb"
	_ "github.com/kozaktomas/face-matcher/internal/database/postgres"
	_ "github.com/kozaktomas/face-matcher/internal/database/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "face-matcher",
	Short: "A CLI tool for storing face embeddings and matching faces against them",
	Long: `Face Matcher detects faces in images, aligns them, computes embeddings with an
external model service and stores them in a reference or group collection.
A query face can then be matched against either collection by cosine
similarity or euclidean distance.`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context,
// which stops a folder batch between files and shuts the API server down.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (pretty, text, json); overrides LOG_FORMAT")
	rootCmd.PersistentFlags().String("store", "", "Store backend (sqlite, postgres, mariadb); overrides STORE_BACKEND")
	rootCmd.PersistentFlags().String("model", "", "Embedding model name; overrides MODEL_NAME")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the environment and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if v := mustGetString(cmd, "log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := mustGetString(cmd, "log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v := mustGetString(cmd, "store"); v != "" {
		cfg.Store.Backend = v
	}
	if v := mustGetString(cmd, "model"); v != "" {
		cfg.Run.ModelName = v
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.FromSettings(cfg.Log.Level, cfg.Log.Format)
}

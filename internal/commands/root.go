package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-chat/internal/config"
	"document-chat/internal/helper"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	cfgFile       string
	debug         bool
	currentConfig *config.Config
	logFile       io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "document-chat",
	Short:         "Chat with your documents using retrieval-augmented generation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if debug {
			cfg.Log.Level = "debug"
			cfg.Database.Debug = true
		}
		currentConfig = cfg
		return helper.SetupLogger(cmd.ErrOrStderr(), cfg.Log.Level, false)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogFile()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigPath, "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Running without a subcommand opens the chat screen.
	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.RunE = runChat
	rootCmd.Flags().StringVarP(&chatStore, "store", "s", "", "open a previously built store")
}

// Execute runs the root command and exits non-zero on failure. SIGINT and
// SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		closeLogFile()
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	return currentConfig
}

// redirectLogs sends logs to the configured log file while a full-screen UI
// owns the terminal.
func redirectLogs(cfg *config.Config) error {
	f, err := helper.OpenLogFile(cfg.Log.File)
	if err != nil {
		return err
	}
	logFile = f
	if err := helper.SetupLogger(f, cfg.Log.Level, true); err != nil {
		return err
	}
	log.Debug().Str("file", cfg.Log.File).Msg("Logging to file")
	return nil
}

func closeLogFile() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

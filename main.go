package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cdash/internal/config"
	"cdash/internal/logging"
)

var (
	// Global flags
	debugFlag  bool
	logLevel   string
	jsonOutput bool
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
	app    *App
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cdash",
	Short: "Complaint BI dashboard data layer",
	Long: `cdash reads complaints and analytics from the complaints backend,
caches them, and serves the dashboard views.

Configuration comes from the environment, an optional .env file and the
embedded defaults (API_BASE_URL, CACHE_STALE_TIME, TELEGRAM_BOT_TOKEN, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("debug") {
			cfg.DebugMode = debugFlag
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		logger, err = logging.New(cfg.LogLevel, cfg.DebugMode)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)

		app, err = NewApp(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log notifications instead of sending them (overrides DEBUG_MODE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(complaintsCmd)
	rootCmd.AddCommand(matrixCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(benchmarkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

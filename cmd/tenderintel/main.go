package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/app"
	"github.com/ternarybob/tenderintel/internal/common"
)

var (
	// Command-line flags
	configFiles []string
	envFile     string
	quiet       bool

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "tenderintel",
	Short:         "Contractor tender intelligence harvester",
	Long:          `Harvests contractor tender history from the ihalebul portal and gathers news and regulatory decisions about contractors.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file loaded before configuration")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Skip the startup banner")

	rootCmd.AddCommand(
		listCmd,
		harvestCmd,
		batchCmd,
		decisionsCmd,
		analyzeCmd,
		newsCmd,
		trackCmd,
		scheduleCmd,
		versionCmd,
	)
}

func main() {
	common.LoadVersionFromFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Command failed")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence:
// 1. Load .env (existing variables win)
// 2. Load config (defaults -> file1 -> file2 -> ... -> env)
// 3. Initialize logger
// 4. Print banner
func loadConfig() error {
	if err := common.LoadDotEnv(envFile); err != nil {
		return err
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, candidate := range []string{"tenderintel.toml", "deployments/local/tenderintel.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger = common.InitLogger(config)

	if !quiet {
		common.PrintBanner(config, logger)
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_type", config.Storage.Type).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration (sanitized)")

	return nil
}

// newApp builds the application for one command invocation
func newApp(ctx context.Context) (*app.App, error) {
	application, err := app.New(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func closeApp(application *app.App) {
	if err := application.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close application")
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

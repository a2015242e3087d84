package cmd

import (
	"context"
	"fmt"
	"os"

	"mentorctl/internal/app"
	"mentorctl/internal/config"
	"mentorctl/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	debugLog   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mentorctl",
	Short: "Run integration suites against a live mentoring platform backend",
	Long: `mentorctl runs ordered integration test suites against the live data
store of the mentoring platform (profiles, courses, modules and contents).

Before a suite starts the backend is backed up, and after the last test it is
restored, so tests may create, update and delete real records. Transient
backend errors are retried; assertion failures are not.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed suites, unreachable backends)
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mentorctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.config/mentorctl/config.yaml, then .mentorctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Shorthand for --log-level=debug")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSuitesCmd())
	rootCmd.AddCommand(newChecksCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPServerCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

func resolveLogLevel() (logging.LogLevel, error) {
	if debugLog {
		return logging.LevelDebug, nil
	}
	return logging.ParseLevel(logLevel)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := resolveLogLevel()
	if err != nil {
		return err
	}
	logging.InitForCLI(level, os.Stderr)
	return nil
}

// loadConfig reads the layered configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initServices loads the configuration and connects to the backend.
func initServices(ctx context.Context) (*app.Services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	services, err := app.InitializeServices(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return services, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Logger is the shared logger instance for all commands
	Logger *logrus.Logger

	rootCmd = &cobra.Command{
		Use:   "adopub",
		Short: "adopub - Azure DevOps test result publisher",
		Long: `adopub publishes automated test execution results into Azure DevOps
Test Plans, mapping tagged scenarios to remote test points and runs.

Run without arguments to launch interactive mode, or use subcommands for direct operations.`,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// InitLogger initializes the shared logger from the LOG_LEVEL environment
// variable. Safe to call after an env file has been loaded.
func InitLogger() {
	Logger = logrus.New()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // Default to info
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Printf("Invalid LOG_LEVEL '%s', defaulting to 'info'\n", logLevel)
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)
}

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()

	InitLogger()
}

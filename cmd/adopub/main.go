// Package main is the entry point for the adopub application
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/testbridge/adopub/cmd"
)

func main() {
	envFile, rest := splitEnvFlag(os.Args[1:])

	if len(rest) > 0 {
		// Subcommand given, hand off to the CLI.
		cmd.Execute()
		return
	}

	if err := loadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		os.Exit(1)
	}

	cmd.InitLogger()
	cmd.RunInteractive()
}

// splitEnvFlag extracts an optional --env flag and returns the remaining
// arguments. No remaining arguments means interactive mode.
func splitEnvFlag(args []string) (envFile string, rest []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--env":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --env flag requires a value")
				os.Exit(1)
			}
			envFile = args[i+1]
			i++
		case strings.HasPrefix(arg, "--env="):
			envFile = strings.TrimPrefix(arg, "--env=")
		default:
			rest = append(rest, arg)
		}
	}

	return envFile, rest
}

// loadEnvFile loads the given env file, tolerating a missing default .env.
func loadEnvFile(file string) error {
	explicit := file != ""
	if !explicit {
		file = ".env"
	}

	if err := godotenv.Load(file); err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load env file '%s': %w", file, err)
	}

	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testbridge/adopub/internal/ado"
	"github.com/testbridge/adopub/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check connectivity and credentials against the configured project",
	Long: `Issues one authenticated request against the configured Azure DevOps
project to verify the organization, project and personal access token before
a suite runs.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runValidate()
	},
}

// runValidate performs the connectivity check. Shared by the validate command
// and the interactive menu.
func runValidate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := ado.NewClient(Logger, cfg)
	if err != nil {
		return fmt.Errorf("creating ado client: %w", err)
	}

	project, err := client.GetProject(context.Background())
	if err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}

	fmt.Printf("✅ Connected to project '%s' (state: %s)\n", project.Name, project.State)
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

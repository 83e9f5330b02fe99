package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testbridge/adopub/internal/config"
)

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Display current environment configuration",
	Long:  `Shows the current configuration loaded from environment variables, the .env file, and the adopub.yaml overlay.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := showConfig(); err != nil {
			return fmt.Errorf("failed to show config: %w", err)
		}
		return nil
	},
}

func showConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	fmt.Println(cfg.String())
	return nil
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
}

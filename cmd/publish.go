package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/testbridge/adopub/internal/ado"
	"github.com/testbridge/adopub/internal/config"
	"github.com/testbridge/adopub/internal/hooks"
	"github.com/testbridge/adopub/internal/output"
	"github.com/testbridge/adopub/internal/publisher"
	"github.com/testbridge/adopub/internal/report"
)

var (
	publishRunName string
)

var publishCmd = &cobra.Command{
	Use:   "publish [report.json]",
	Short: "Publish a cucumber JSON report to Azure DevOps",
	Long: `Publish the scenarios of a godog/cucumber JSON report into an Azure
DevOps test run.

The command will:
1. Resolve test-case, plan and suite IDs from scenario and feature tags
2. Fetch test points once per distinct (plan, suite) pair
3. Create a test run scoped to the collected points
4. Update one result per mapped test case, upload configured artifacts,
   and create bugs for failures when enabled
5. Complete the run

Remote failures degrade reporting but never fail the command; only local
errors (unreadable report, invalid configuration) do.

Examples:
  ./bin/adopub publish reports/cucumber.json
  ./bin/adopub publish reports/cucumber.json --run-name "Nightly regression"`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runPublish(args[0])
	},
}

// runPublish drives the full pipeline for one report file. Shared by the
// publish command and the interactive menu.
func runPublish(reportPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Publishing was requested explicitly, so treat the kill switch as on.
	cfg.Enabled = true

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if publishRunName != "" {
		cfg.RunName = publishRunName
	}

	results, err := report.NewLoader(Logger).Load(reportPath)
	if err != nil {
		return fmt.Errorf("loading report: %w", err)
	}

	if len(results) == 0 {
		Logger.Warn("report contains no scenarios, nothing to publish")
		return nil
	}

	client, err := ado.NewClient(Logger, cfg)
	if err != nil {
		return fmt.Errorf("creating ado client: %w", err)
	}

	pub := publisher.NewPublisher(Logger, cfg, client)
	lifecycle := hooks.New(Logger, cfg, pub)

	ctx := context.Background()

	lifecycle.BeforeAll(ctx, report.Scenarios(results))
	for _, result := range results {
		lifecycle.AfterScenario(ctx, result)
	}
	lifecycle.AfterAll(ctx)

	output.NewSummaryRenderer(Logger).RenderToWriter(os.Stdout, results, lifecycle.RemoteFailures())

	return nil
}

func init() {
	publishCmd.Flags().StringVar(&publishRunName, "run-name", "", "override the remote run name")
	rootCmd.AddCommand(publishCmd)
}

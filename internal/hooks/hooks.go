// Package hooks is the lifecycle adapter between a BDD runner and the
// publishing pipeline: collect before the suite, one call per finished
// scenario, one call at suite completion.
package hooks

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/testbridge/adopub/internal/config"
	"github.com/testbridge/adopub/internal/metadata"
	"github.com/testbridge/adopub/internal/publisher"
)

// Hooks forwards runner lifecycle events to the pipeline and logs the typed
// publish outcomes centrally. Remote failures never surface to the runner.
type Hooks struct {
	log       logrus.FieldLogger
	cfg       *config.Config
	publisher *publisher.Publisher

	failures int
}

// New creates the lifecycle adapter.
func New(log logrus.FieldLogger, cfg *config.Config, pub *publisher.Publisher) *Hooks {
	return &Hooks{
		log:       log.WithField("component", "hooks"),
		cfg:       cfg,
		publisher: pub,
	}
}

// IsEnabled reports whether remote publishing is configured and switched on.
func (h *Hooks) IsEnabled() bool {
	return h.cfg.Enabled
}

// HasADOMapping reports whether a scenario resolves to at least one remote
// test case, usable for UI and logging decisions.
func (h *Hooks) HasADOMapping(scenarioTags, featureTags []string) bool {
	return metadata.Extract(scenarioTags, featureTags).HasMapping()
}

// BeforeAll collects test points for the suite's scenarios and opens the
// remote run. A suite with zero mapped scenarios opens no run.
func (h *Hooks) BeforeAll(ctx context.Context, scenarios []publisher.Scenario) {
	if !h.IsEnabled() {
		return
	}

	h.failures += publisher.LogOutcomes(h.log, h.publisher.Collect(ctx, scenarios))
	h.failures += publisher.LogOutcomes(h.log, h.publisher.StartTestRun(ctx, h.cfg.RunName))
}

// AfterScenario forwards one finished scenario. In sequential mode the result
// is published immediately; in batched mode it is buffered for the drain at
// suite completion.
func (h *Hooks) AfterScenario(ctx context.Context, result *publisher.ScenarioResult) {
	if !h.IsEnabled() {
		return
	}

	if h.cfg.PublishMode == config.PublishModeSequential {
		h.failures += publisher.LogOutcomes(h.log, h.publisher.PublishScenarioResult(ctx, result))
		return
	}

	h.publisher.AddScenarioResult(result)
}

// AfterAll drains any buffered results and completes the remote run.
func (h *Hooks) AfterAll(ctx context.Context) {
	if !h.IsEnabled() {
		return
	}

	h.failures += publisher.LogOutcomes(h.log, h.publisher.CompleteTestRun(ctx))

	if h.failures > 0 {
		h.log.WithField("failed_steps", h.failures).Warn("run published with degraded reporting")
	}
}

// RemoteFailures returns the number of failed publish steps observed so far.
func (h *Hooks) RemoteFailures() int {
	return h.failures
}

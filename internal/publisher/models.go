// Package publisher orchestrates delivery of scenario results into Azure
// DevOps test runs.
package publisher

import (
	"fmt"
	"time"

	"github.com/testbridge/adopub/internal/ado"
)

// Status is the local three-valued verdict of a scenario execution.
type Status string

const (
	// StatusPassed marks a scenario that completed without failure.
	StatusPassed Status = "passed"
	// StatusFailed marks a scenario with at least one failed step.
	StatusFailed Status = "failed"
	// StatusSkipped marks a scenario that did not execute.
	StatusSkipped Status = "skipped"
)

// Feature identifies the owning feature of a scenario.
type Feature struct {
	Name string
	Tags []string
}

// Scenario identifies one local scenario before execution.
type Scenario struct {
	Name    string
	Tags    []string
	Feature Feature
}

// Artifacts lists files captured during scenario execution, grouped by kind.
type Artifacts struct {
	Screenshots []string
	Videos      []string
	Logs        []string
	Traces      []string
	HARs        []string
}

// Empty reports whether no artifact of any kind was captured.
func (a Artifacts) Empty() bool {
	return len(a.Screenshots) == 0 && len(a.Videos) == 0 &&
		len(a.Logs) == 0 && len(a.Traces) == 0 && len(a.HARs) == 0
}

// ScenarioResult is one finished local test. Created when a scenario finishes
// executing and immutable thereafter.
type ScenarioResult struct {
	Scenario     Scenario
	Status       Status
	Duration     time.Duration
	ErrorMessage string
	StackTrace   string
	Steps        []string
	Artifacts    Artifacts
}

// Key is the unique buffer key for a result, scoped by feature to avoid
// collisions between identically named scenarios.
func (r *ScenarioResult) Key() string {
	return fmt.Sprintf("%s::%s", r.Scenario.Feature.Name, r.Scenario.Name)
}

// MapOutcome translates a local status into the remote outcome vocabulary.
// The mapping is total: anything that is not passed or failed reports as
// NotExecuted.
func MapOutcome(status Status) string {
	switch status {
	case StatusPassed:
		return ado.OutcomePassed
	case StatusFailed:
		return ado.OutcomeFailed
	default:
		return ado.OutcomeNotExecuted
	}
}

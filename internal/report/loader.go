// Package report loads godog/cucumber JSON reports and converts them into
// scenario results for publishing.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/testbridge/adopub/internal/publisher"
)

// cukeFeature matches godog JSON output for a feature.
type cukeFeature struct {
	URI      string        `json:"uri"`
	Name     string        `json:"name"`
	Tags     []cukeTag     `json:"tags"`
	Elements []cukeElement `json:"elements"`
}

// cukeElement describes a scenario element from godog JSON.
type cukeElement struct {
	Type  string     `json:"type"`
	Name  string     `json:"name"`
	Tags  []cukeTag  `json:"tags"`
	Steps []cukeStep `json:"steps"`
}

type cukeTag struct {
	Name string `json:"name"`
}

type cukeStep struct {
	Keyword string     `json:"keyword"`
	Name    string     `json:"name"`
	Result  cukeResult `json:"result"`
}

// cukeResult contains a step execution status; duration is in nanoseconds.
type cukeResult struct {
	Status       string `json:"status"`
	Duration     int64  `json:"duration"`
	ErrorMessage string `json:"error_message"`
}

// Loader reads cucumber JSON reports from disk.
type Loader struct {
	log logrus.FieldLogger
}

// NewLoader creates a report loader.
func NewLoader(log logrus.FieldLogger) *Loader {
	return &Loader{log: log.WithField("component", "report_loader")}
}

// Load parses one cucumber JSON report into scenario results. Background
// elements are folded into their feature and not reported on their own.
func (l *Loader) Load(path string) ([]*publisher.ScenarioResult, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Report path supplied on the command line
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	var features []cukeFeature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}

	var results []*publisher.ScenarioResult

	for _, feature := range features {
		featureTags := tagNames(feature.Tags)

		for _, element := range feature.Elements {
			if element.Type != "scenario" {
				continue
			}

			results = append(results, l.convert(feature, featureTags, element))
		}
	}

	l.log.WithFields(logrus.Fields{
		"path":      path,
		"features":  len(features),
		"scenarios": len(results),
	}).Info("loaded cucumber report")

	return results, nil
}

// Scenarios extracts the scenario identities from results, the shape the
// collection phase consumes.
func Scenarios(results []*publisher.ScenarioResult) []publisher.Scenario {
	scenarios := make([]publisher.Scenario, 0, len(results))
	for _, r := range results {
		scenarios = append(scenarios, r.Scenario)
	}
	return scenarios
}

// convert folds a feature element's steps into one ScenarioResult.
func (l *Loader) convert(feature cukeFeature, featureTags []string, element cukeElement) *publisher.ScenarioResult {
	result := &publisher.ScenarioResult{
		Scenario: publisher.Scenario{
			Name: element.Name,
			Tags: tagNames(element.Tags),
			Feature: publisher.Feature{
				Name: feature.Name,
				Tags: featureTags,
			},
		},
		Status: publisher.StatusSkipped,
	}

	executed := false
	var totalDuration int64

	for _, step := range element.Steps {
		result.Steps = append(result.Steps, stepLabel(step))
		totalDuration += step.Result.Duration

		switch step.Result.Status {
		case "passed":
			executed = true
		case "failed":
			executed = true
			result.Status = publisher.StatusFailed
			if result.ErrorMessage == "" {
				result.ErrorMessage = step.Result.ErrorMessage
			}
		}
	}

	if executed && result.Status != publisher.StatusFailed {
		result.Status = publisher.StatusPassed
	}

	result.Duration = time.Duration(totalDuration) * time.Nanosecond

	return result
}

// stepLabel joins keyword and text with a single space. Godog emits keywords
// with a trailing space ("Given "), which would otherwise double up.
func stepLabel(step cukeStep) string {
	keyword := strings.TrimSpace(step.Keyword)
	if keyword == "" {
		return step.Name
	}
	return keyword + " " + step.Name
}

func tagNames(tags []cukeTag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

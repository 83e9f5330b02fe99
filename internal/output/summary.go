// Package output renders the publish summary for terminal display.
package output

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"

	"github.com/testbridge/adopub/internal/metadata"
	"github.com/testbridge/adopub/internal/publisher"
)

// SummaryRenderer renders published scenario results as a table.
type SummaryRenderer struct {
	log logrus.FieldLogger
}

// NewSummaryRenderer creates a summary renderer.
func NewSummaryRenderer(log logrus.FieldLogger) *SummaryRenderer {
	return &SummaryRenderer{
		log: log.WithField("component", "summary_renderer"),
	}
}

// RenderToString renders the summary table to a string.
func (r *SummaryRenderer) RenderToString(results []*publisher.ScenarioResult, remoteFailures int) string {
	buf := &bytes.Buffer{}
	r.RenderToWriter(buf, results, remoteFailures)
	return buf.String()
}

// RenderToWriter renders the summary table and a one-line footer.
func (r *SummaryRenderer) RenderToWriter(w io.Writer, results []*publisher.ScenarioResult, remoteFailures int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Feature", "Scenario", "Status", "Cases", "Duration"})

	// Apply consistent styling
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetBorder(true)

	passed, failed := 0, 0

	for _, result := range results {
		switch result.Status {
		case publisher.StatusPassed:
			passed++
		case publisher.StatusFailed:
			failed++
		}

		meta := metadata.Extract(result.Scenario.Tags, result.Scenario.Feature.Tags)
		caseIDs := make([]string, 0, len(meta.CaseIDs()))
		for _, id := range meta.CaseIDs() {
			caseIDs = append(caseIDs, strconv.Itoa(id))
		}

		caseDisplay := strings.Join(caseIDs, ", ")
		if caseDisplay == "" {
			caseDisplay = "(unmapped)"
		}

		table.Append([]string{
			result.Scenario.Feature.Name,
			result.Scenario.Name,
			colorStatus(result.Status),
			caseDisplay,
			result.Duration.String(),
		})
	}

	table.Render()

	footer := fmt.Sprintf("%d scenarios: %d passed, %d failed", len(results), passed, failed)
	if remoteFailures > 0 {
		footer += colorWarning(fmt.Sprintf(" (%d remote publish steps failed)", remoteFailures))
	}
	fmt.Fprintln(w, footer)
}

var colorEnabled = !color.NoColor

func colorStatus(status publisher.Status) string {
	if !colorEnabled {
		return string(status)
	}

	switch status {
	case publisher.StatusPassed:
		return color.GreenString(string(status))
	case publisher.StatusFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func colorWarning(text string) string {
	if !colorEnabled {
		return text
	}
	return color.YellowString(text)
}

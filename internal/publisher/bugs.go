package publisher

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/testbridge/adopub/internal/ado"
)

// createBugLocked creates one Bug work item for a failed scenario and
// attaches its screenshots. Every remote failure is captured as an outcome.
func (p *Publisher) createBugLocked(ctx context.Context, key string, caseIDs []int, result *ScenarioResult) []PublishOutcome {
	ops := []ado.PatchOperation{
		{
			Op:    "add",
			Path:  "/fields/System.Title",
			Value: fmt.Sprintf("Failed scenario: %s", result.Scenario.Name),
		},
		{
			Op:    "add",
			Path:  "/fields/Microsoft.VSTS.TCM.ReproSteps",
			Value: formatBugDescription(caseIDs, result),
		},
	}
	if p.cfg.BugAssignee != "" {
		ops = append(ops, ado.PatchOperation{
			Op:    "add",
			Path:  "/fields/System.AssignedTo",
			Value: p.cfg.BugAssignee,
		})
	}

	bug, err := p.client.CreateBug(ctx, ops)
	if err != nil {
		return []PublishOutcome{{ScenarioKey: key, Stage: StageBug, Err: err}}
	}

	p.log.WithFields(logrus.Fields{
		"scenario": key,
		"bug_id":   bug.ID,
	}).Info("bug created for failed scenario")

	outcomes := []PublishOutcome{{ScenarioKey: key, Stage: StageBug, Detail: fmt.Sprintf("bug %d", bug.ID)}}

	// Screenshots give the triager immediate context; other artifact kinds
	// already live on the run.
	for _, path := range result.Artifacts.Screenshots {
		if outcome, skipped := p.attachScreenshotToBug(ctx, key, bug.ID, path); !skipped {
			outcomes = append(outcomes, outcome)
		}
	}

	return outcomes
}

// attachScreenshotToBug uploads one screenshot to the work item store and
// links it to the bug. Missing files are skipped.
func (p *Publisher) attachScreenshotToBug(ctx context.Context, key string, bugID int, path string) (PublishOutcome, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Artifact paths come from the local test run
	if err != nil {
		if os.IsNotExist(err) {
			p.log.WithFields(logrus.Fields{
				"scenario": key,
				"path":     path,
			}).Warn("screenshot missing, skipping bug attachment")
			return PublishOutcome{}, true
		}
		return PublishOutcome{
			ScenarioKey: key,
			Stage:       StageBug,
			Detail:      path,
			Err:         fmt.Errorf("reading screenshot: %w", err),
		}, false
	}

	ref, err := p.client.UploadWorkItemAttachment(ctx, filepath.Base(path), data)
	if err != nil {
		return PublishOutcome{ScenarioKey: key, Stage: StageBug, Detail: path, Err: err}, false
	}

	if err := p.client.LinkAttachmentToWorkItem(ctx, bugID, ref.URL, "Failure screenshot"); err != nil {
		return PublishOutcome{ScenarioKey: key, Stage: StageBug, Detail: path, Err: err}, false
	}

	return PublishOutcome{ScenarioKey: key, Stage: StageBug, Detail: path}, false
}

// formatBugDescription renders the structured failure description: scenario,
// feature, status, duration, mapped case IDs, error message, stack trace,
// and the step list.
func formatBugDescription(caseIDs []int, result *ScenarioResult) string {
	var b strings.Builder

	caseList := make([]string, 0, len(caseIDs))
	for _, id := range caseIDs {
		caseList = append(caseList, fmt.Sprintf("%d", id))
	}

	b.WriteString("<div>")
	fmt.Fprintf(&b, "<p><b>Scenario:</b> %s</p>", html.EscapeString(result.Scenario.Name))
	fmt.Fprintf(&b, "<p><b>Feature:</b> %s</p>", html.EscapeString(result.Scenario.Feature.Name))
	fmt.Fprintf(&b, "<p><b>Status:</b> %s</p>", result.Status)
	fmt.Fprintf(&b, "<p><b>Duration:</b> %dms</p>", result.Duration.Milliseconds())
	fmt.Fprintf(&b, "<p><b>Test Cases:</b> %s</p>", strings.Join(caseList, ", "))

	if result.ErrorMessage != "" {
		fmt.Fprintf(&b, "<p><b>Error:</b> %s</p>", html.EscapeString(result.ErrorMessage))
	}
	if result.StackTrace != "" {
		fmt.Fprintf(&b, "<p><b>Stack Trace:</b></p><pre>%s</pre>", html.EscapeString(result.StackTrace))
	}

	if len(result.Steps) > 0 {
		b.WriteString("<p><b>Steps:</b></p><ol>")
		for _, step := range result.Steps {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(step))
		}
		b.WriteString("</ol>")
	}

	b.WriteString("</div>")

	return b.String()
}

package publisher

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/testbridge/adopub/internal/ado"
)

// artifactGroup pairs one artifact kind with its configuration gate.
type artifactGroup struct {
	kind    string
	enabled bool
	paths   []string
}

// uploadArtifactsLocked uploads the scenario's artifacts to the run, one
// group per configured kind. Missing files are skipped with a warning;
// upload failures become outcomes and do not stop sibling uploads.
func (p *Publisher) uploadArtifactsLocked(ctx context.Context, key string, result *ScenarioResult) []PublishOutcome {
	if result.Artifacts.Empty() {
		return nil
	}

	groups := []artifactGroup{
		{kind: "screenshot", enabled: p.cfg.Uploads.Screenshots, paths: result.Artifacts.Screenshots},
		{kind: "video", enabled: p.cfg.Uploads.Videos, paths: result.Artifacts.Videos},
		{kind: "log", enabled: p.cfg.Uploads.Logs, paths: result.Artifacts.Logs},
		{kind: "trace", enabled: p.cfg.Uploads.Traces, paths: result.Artifacts.Traces},
		{kind: "har", enabled: p.cfg.Uploads.HAR, paths: result.Artifacts.HARs},
	}

	var outcomes []PublishOutcome

	for _, group := range groups {
		if !group.enabled {
			continue
		}

		for _, path := range group.paths {
			outcome, skipped := p.uploadOneLocked(ctx, key, group.kind, path, result)
			if skipped {
				continue
			}
			outcomes = append(outcomes, outcome)
		}
	}

	return outcomes
}

// uploadOneLocked uploads a single artifact file. The second return value is
// true when the file was missing and the upload was skipped.
func (p *Publisher) uploadOneLocked(ctx context.Context, key, kind, path string, result *ScenarioResult) (PublishOutcome, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Artifact paths come from the local test run
	if err != nil {
		if os.IsNotExist(err) {
			p.log.WithFields(logrus.Fields{
				"scenario": key,
				"kind":     kind,
				"path":     path,
			}).Warn("artifact file missing, skipping upload")
			return PublishOutcome{}, true
		}
		return PublishOutcome{
			ScenarioKey: key,
			Stage:       StageAttachment,
			Detail:      path,
			Err:         fmt.Errorf("reading artifact: %w", err),
		}, false
	}

	att := ado.AttachmentRequest{
		Stream:         base64.StdEncoding.EncodeToString(data),
		FileName:       filepath.Base(path),
		AttachmentType: "GeneralAttachment",
		Comment:        fmt.Sprintf("%s for scenario %q", kind, result.Scenario.Name),
	}

	if _, err := p.client.UploadRunAttachment(ctx, p.run.ID, att); err != nil {
		return PublishOutcome{ScenarioKey: key, Stage: StageAttachment, Detail: path, Err: err}, false
	}

	return PublishOutcome{ScenarioKey: key, Stage: StageAttachment, Detail: path}, false
}

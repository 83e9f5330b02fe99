package publisher

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// errNoResultSlot marks a case ID whose test point was not part of the run's
// collected set; the result cannot be reported against this run.
var errNoResultSlot = errors.New("no result slot in run")

// Stage names the pipeline step a PublishOutcome refers to.
type Stage string

const (
	// StageCollect covers test point collection.
	StageCollect Stage = "collect"
	// StageRunCreate covers remote run creation.
	StageRunCreate Stage = "run_create"
	// StageResultUpdate covers per-case result updates.
	StageResultUpdate Stage = "result_update"
	// StageAttachment covers artifact uploads.
	StageAttachment Stage = "attachment"
	// StageBug covers bug creation for failed scenarios.
	StageBug Stage = "bug"
	// StageRunComplete covers the run completion transition.
	StageRunComplete Stage = "run_complete"
)

// PublishOutcome is the typed result of one remote publish step. Remote
// failures are carried here instead of being returned as errors so that one
// scenario's failure never aborts the local suite; the caller logs them
// centrally.
type PublishOutcome struct {
	// ScenarioKey is empty for run-level stages.
	ScenarioKey string
	Stage       Stage
	// Detail carries extra context such as a file name or case ID.
	Detail string
	Err    error
}

// OK reports whether the step succeeded.
func (o PublishOutcome) OK() bool {
	return o.Err == nil
}

// LogOutcomes writes failed outcomes as warnings and counts them. Successful
// outcomes are logged at debug. Returns the number of failures.
func LogOutcomes(log logrus.FieldLogger, outcomes []PublishOutcome) int {
	failures := 0

	for _, o := range outcomes {
		fields := logrus.Fields{"stage": o.Stage}
		if o.ScenarioKey != "" {
			fields["scenario"] = o.ScenarioKey
		}
		if o.Detail != "" {
			fields["detail"] = o.Detail
		}

		if o.OK() {
			log.WithFields(fields).Debug("publish step succeeded")
			continue
		}

		failures++
		log.WithFields(fields).WithError(o.Err).Warn("publish step failed, continuing")
	}

	return failures
}

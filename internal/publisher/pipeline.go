package publisher

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/testbridge/adopub/internal/ado"
	"github.com/testbridge/adopub/internal/config"
	"github.com/testbridge/adopub/internal/metadata"
)

// maxConcurrentPointFetches bounds the parallel per-pair fetches during the
// collection phase.
const maxConcurrentPointFetches = 4

// Publisher orchestrates the result-publishing pipeline: it collects the
// remote test points a batch of scenarios maps to, creates a run scoped to
// exactly those points, delivers per-scenario outcomes and artifacts, and
// completes the run. Remote failures degrade reporting but never propagate
// to the local suite; every remote step yields a PublishOutcome instead.
type Publisher struct {
	log    logrus.FieldLogger
	cfg    *config.Config
	client *ado.Client

	mu        sync.Mutex
	cache     *PointCache
	collected *CollectedTestPoints
	run       *ado.TestRun
	// resultIDs maps a remote test-case ID to its result slot inside the run.
	resultIDs map[string]int

	// Pending results buffer for batched mode, drained in insertion order.
	pending     map[string]*ScenarioResult
	pendingKeys []string
	publishing  bool
}

// NewPublisher creates a pipeline bound to one transport and configuration.
// Multiple independent publishers may coexist in a process.
func NewPublisher(log logrus.FieldLogger, cfg *config.Config, client *ado.Client) *Publisher {
	return &Publisher{
		log:       log.WithField("component", "publisher"),
		cfg:       cfg,
		client:    client,
		cache:     NewPointCache(log),
		collected: newCollectedTestPoints(),
		resultIDs: make(map[string]int),
		pending:   make(map[string]*ScenarioResult),
	}
}

// pairFor derives the (plan, suite) pair for a scenario, applying the
// configured fallbacks when tags carry none. The second return value is false
// when the mapping is incomplete.
func (p *Publisher) pairFor(meta metadata.ADOMetadata) (PlanSuite, bool) {
	pair := PlanSuite{Plan: meta.PlanID, Suite: meta.SuiteID}
	if pair.Plan == 0 {
		pair.Plan = p.cfg.PlanID
	}
	if pair.Suite == 0 {
		pair.Suite = p.cfg.SuiteID
	}

	if len(meta.CaseIDs()) == 0 || pair.Plan == 0 || pair.Suite == 0 {
		return PlanSuite{}, false
	}

	return pair, true
}

// Collect resolves the scenarios' remote mappings and fetches each distinct
// (plan, suite) point list exactly once. A failed fetch degrades that pair to
// an empty point list; collection itself never fails remotely. The collected
// point-ID set accumulates across calls.
func (p *Publisher) Collect(ctx context.Context, scenarios []Scenario) []PublishOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Group scenarios by pair; incomplete mappings are excluded.
	type resolved struct {
		scenario Scenario
		meta     metadata.ADOMetadata
		pair     PlanSuite
	}

	mapped := make([]resolved, 0, len(scenarios))
	pairs := make(map[PlanSuite]bool)

	for _, s := range scenarios {
		meta := metadata.Extract(s.Tags, s.Feature.Tags)
		pair, ok := p.pairFor(meta)
		if !ok {
			continue
		}
		mapped = append(mapped, resolved{scenario: s, meta: meta, pair: pair})
		pairs[pair] = true
	}

	if len(mapped) == 0 {
		p.log.Debug("no scenarios with a complete remote mapping")
		return nil
	}

	if p.collected.planID == 0 {
		p.collected.planID = mapped[0].pair.Plan
	}

	outcomes := p.fetchPointsLocked(ctx, pairs)

	// Resolve case IDs to point IDs from the populated cache.
	for _, r := range mapped {
		for _, caseID := range r.meta.CaseIDs() {
			for _, pointID := range p.cache.PointIDsForCase(r.pair, strconv.Itoa(caseID)) {
				p.collected.add(pointID)
			}
		}
	}

	p.log.WithFields(logrus.Fields{
		"scenarios": len(mapped),
		"pairs":     len(pairs),
		"points":    len(p.collected.ids),
	}).Info("collected test points")

	return outcomes
}

// fetchPointsLocked fetches the point list for every pair not yet cached.
// Fetches run in parallel; failures are recorded as outcomes and the pair is
// cached empty so it is not retried.
func (p *Publisher) fetchPointsLocked(ctx context.Context, pairs map[PlanSuite]bool) []PublishOutcome {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPointFetches)

	var (
		outcomeMu sync.Mutex
		outcomes  []PublishOutcome
	)

	for pair := range pairs {
		if p.cache.Has(pair) {
			continue
		}

		pair := pair
		g.Go(func() error {
			points, err := p.client.FetchTestPoints(gctx, pair.Plan, pair.Suite)
			if err != nil {
				// Degrade this pair to "no points available".
				p.cache.Put(pair, nil)

				outcomeMu.Lock()
				outcomes = append(outcomes, PublishOutcome{
					Stage:  StageCollect,
					Detail: fmt.Sprintf("plan %d suite %d", pair.Plan, pair.Suite),
					Err:    err,
				})
				outcomeMu.Unlock()

				return nil
			}

			p.cache.Put(pair, points)
			return nil
		})
	}

	// Fetch errors are swallowed per pair, so the group only ever returns a
	// context error.
	_ = g.Wait()

	return outcomes
}

// StartTestRun creates the remote run scoped to the collected point IDs.
// Idempotent: a second call while a run is active does nothing. A suite with
// zero remote-mapped scenarios produces no run and later publishes are
// no-ops.
func (p *Publisher) StartTestRun(ctx context.Context, name string) []PublishOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != nil {
		p.log.WithField("run_id", p.run.ID).Debug("test run already started")
		return nil
	}

	if p.collected.Empty() {
		p.log.Debug("no collected test points, skipping run creation")
		return nil
	}

	if name == "" {
		name = fmt.Sprintf("Automated run %s", time.Now().Format("2006-01-02 15:04"))
	}

	run, err := p.client.CreateTestRun(ctx, name, p.collected.PlanID(), p.collected.IDs())
	if err != nil {
		return []PublishOutcome{{Stage: StageRunCreate, Detail: name, Err: err}}
	}

	p.run = run

	p.log.WithFields(logrus.Fields{
		"run_id": run.ID,
		"name":   run.Name,
		"points": len(p.collected.ids),
	}).Info("test run created")

	return append([]PublishOutcome{{Stage: StageRunCreate, Detail: name}},
		p.loadResultSlotsLocked(ctx)...)
}

// loadResultSlotsLocked maps each remote test-case ID to the result slot the
// service created when the run was scoped to its points. Fetched once per
// run; failure degrades later result updates for unknown cases.
func (p *Publisher) loadResultSlotsLocked(ctx context.Context) []PublishOutcome {
	results, err := p.client.GetRunResults(ctx, p.run.ID)
	if err != nil {
		return []PublishOutcome{{Stage: StageRunCreate, Detail: "result slots", Err: err}}
	}

	for _, r := range results {
		if r.TestCase.ID != "" {
			p.resultIDs[r.TestCase.ID] = r.ID
		}
	}

	p.log.WithField("slots", len(p.resultIDs)).Debug("loaded result slots")

	return nil
}

// RunActive reports whether a remote run is currently open.
func (p *Publisher) RunActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

// PublishScenarioResult delivers one finished scenario to the remote run
// immediately (sequential mode). Unmapped scenarios are skipped silently.
func (p *Publisher) PublishScenarioResult(ctx context.Context, result *ScenarioResult) []PublishOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.publishOneLocked(ctx, result)
}

// AddScenarioResult buffers one finished scenario for the batched drain.
// Re-adding the same scenario key overwrites the buffered value while
// keeping its original drain position.
func (p *Publisher) AddScenarioResult(result *ScenarioResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := result.Key()
	if _, exists := p.pending[key]; !exists {
		p.pendingKeys = append(p.pendingKeys, key)
	}
	p.pending[key] = result
}

// PendingCount returns the number of buffered results awaiting a drain.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// PublishAllResults drains the pending buffer in insertion order, publishing
// exactly one record per distinct scenario key. A drain already in progress
// makes the call a no-op, preventing overlapping drains from
// double-publishing.
func (p *Publisher) PublishAllResults(ctx context.Context) []PublishOutcome {
	p.mu.Lock()
	if p.publishing {
		p.mu.Unlock()
		p.log.Debug("publish already in progress, skipping drain")
		return nil
	}
	p.publishing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.publishing = false
		p.mu.Unlock()
	}()

	var outcomes []PublishOutcome

	for {
		p.mu.Lock()
		if len(p.pendingKeys) == 0 {
			p.mu.Unlock()
			break
		}

		key := p.pendingKeys[0]
		p.pendingKeys = p.pendingKeys[1:]
		result := p.pending[key]
		delete(p.pending, key)

		stepOutcomes := p.publishOneLocked(ctx, result)
		p.mu.Unlock()

		outcomes = append(outcomes, stepOutcomes...)
	}

	return outcomes
}

// publishOneLocked runs the per-scenario publish sequence: result updates per
// mapped case ID, artifact uploads, then bug creation for failures. Every
// remote failure is captured as an outcome; none aborts the sequence for
// sibling steps of other cases.
func (p *Publisher) publishOneLocked(ctx context.Context, result *ScenarioResult) []PublishOutcome {
	if p.run == nil || result == nil {
		return nil
	}

	meta := metadata.Extract(result.Scenario.Tags, result.Scenario.Feature.Tags)
	caseIDs := meta.CaseIDs()
	if len(caseIDs) == 0 {
		// Not an error: scenarios without a remote identity are skipped.
		p.log.WithField("scenario", result.Scenario.Name).Debug("no remote mapping, skipping")
		return nil
	}

	key := result.Key()
	outcome := MapOutcome(result.Status)

	var outcomes []PublishOutcome

	if p.cfg.UpdateTestCases {
		for _, caseID := range caseIDs {
			outcomes = append(outcomes, p.updateResultLocked(ctx, key, caseID, outcome, result))
		}
	}

	outcomes = append(outcomes, p.uploadArtifactsLocked(ctx, key, result)...)

	if result.Status == StatusFailed && p.cfg.CreateBugOnFail {
		outcomes = append(outcomes, p.createBugLocked(ctx, key, caseIDs, result)...)
	}

	return outcomes
}

// updateResultLocked issues one result-update call for one mapped case ID.
func (p *Publisher) updateResultLocked(ctx context.Context, key string, caseID int, outcome string, result *ScenarioResult) PublishOutcome {
	resultID, ok := p.resultIDs[strconv.Itoa(caseID)]
	if !ok {
		// The case's point was not part of this run's collected set.
		return PublishOutcome{
			ScenarioKey: key,
			Stage:       StageResultUpdate,
			Detail:      fmt.Sprintf("case %d has no result slot in run %d", caseID, p.run.ID),
			Err:         errNoResultSlot,
		}
	}

	update := ado.ResultUpdate{
		ID:           resultID,
		Outcome:      outcome,
		State:        "Completed",
		DurationInMS: result.Duration.Milliseconds(),
		ErrorMessage: result.ErrorMessage,
		StackTrace:   result.StackTrace,
	}

	if err := p.client.UpdateTestResults(ctx, p.run.ID, []ado.ResultUpdate{update}); err != nil {
		return PublishOutcome{
			ScenarioKey: key,
			Stage:       StageResultUpdate,
			Detail:      fmt.Sprintf("case %d", caseID),
			Err:         err,
		}
	}

	p.log.WithFields(logrus.Fields{
		"scenario": key,
		"case_id":  caseID,
		"outcome":  outcome,
		"duration": result.Duration,
	}).Debug("result updated")

	return PublishOutcome{ScenarioKey: key, Stage: StageResultUpdate, Detail: fmt.Sprintf("case %d", caseID)}
}

// CompleteTestRun flushes any still-pending buffered results, transitions the
// run to Completed, then clears all per-run state so a new run can be started
// cleanly. Calling it before StartTestRun is a no-op.
func (p *Publisher) CompleteTestRun(ctx context.Context) []PublishOutcome {
	outcomes := p.PublishAllResults(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run == nil {
		return outcomes
	}

	runID := p.run.ID
	if err := p.client.CompleteTestRun(ctx, runID, time.Now()); err != nil {
		outcomes = append(outcomes, PublishOutcome{Stage: StageRunComplete, Err: err})
	} else {
		outcomes = append(outcomes, PublishOutcome{Stage: StageRunComplete})
		p.log.WithField("run_id", runID).Info("test run completed")
	}

	p.resetLocked()

	return outcomes
}

// resetLocked restores the pipeline to its pre-initialization state,
// supporting multiple suites per process.
func (p *Publisher) resetLocked() {
	p.run = nil
	p.resultIDs = make(map[string]int)
	p.pending = make(map[string]*ScenarioResult)
	p.pendingKeys = nil
	p.cache = NewPointCache(p.log)
	p.collected = newCollectedTestPoints()
}

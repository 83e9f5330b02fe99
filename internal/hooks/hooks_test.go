package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/testbridge/adopub/internal/ado"
	"github.com/testbridge/adopub/internal/config"
	"github.com/testbridge/adopub/internal/publisher"
)

// fakeCounts tracks which remote operations the facade triggered.
type fakeCounts struct {
	pointFetches  atomic.Int32
	runCreates    atomic.Int32
	resultPatches atomic.Int32
	runCompletes  atomic.Int32
}

// newFakeServer serves a minimal happy-path ADO API for one plan/suite/case.
func newFakeServer(t *testing.T, counts *fakeCounts) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.Contains(r.URL.Path, "/points"):
			counts.pointFetches.Add(1)
			_ = json.NewEncoder(w).Encode(ado.TestPointList{
				Count: 1,
				Value: []ado.TestPoint{{ID: 2001, TestCase: ado.TestCaseRef{ID: "419"}}},
			})
		case strings.HasSuffix(r.URL.Path, "/test/runs") && r.Method == http.MethodPost:
			counts.runCreates.Add(1)
			_ = json.NewEncoder(w).Encode(ado.TestRun{ID: 1001, State: ado.RunStateInProgress})
		case strings.HasSuffix(r.URL.Path, "/results") && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(ado.TestResultList{
				Count: 1,
				Value: []ado.TestResult{{ID: 52001, TestCase: ado.TestCaseRef{ID: "419"}}},
			})
		case strings.HasSuffix(r.URL.Path, "/results") && r.Method == http.MethodPatch:
			counts.resultPatches.Add(1)
			_ = json.NewEncoder(w).Encode(ado.TestResultList{})
		case r.Method == http.MethodPatch:
			counts.runCompletes.Add(1)
			_ = json.NewEncoder(w).Encode(ado.TestRun{State: ado.RunStateCompleted})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestHooks(t *testing.T, counts *fakeCounts, mode config.PublishMode, enabled bool) *Hooks {
	server := newFakeServer(t, counts)

	cfg := &config.Config{
		Enabled:         enabled,
		Organization:    "contoso",
		Project:         "webshop",
		PAT:             "secret",
		APIVersion:      "7.1",
		BaseURL:         server.URL,
		RequestTimeout:  2 * time.Second,
		RetryCount:      1,
		RetryDelay:      time.Millisecond,
		PublishMode:     mode,
		UpdateTestCases: true,
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	client, err := ado.NewClient(log, cfg)
	require.NoError(t, err)

	return New(log, cfg, publisher.NewPublisher(log, cfg, client))
}

func mappedScenario() publisher.Scenario {
	return publisher.Scenario{
		Name:    "Valid login",
		Tags:    []string{"@TestCase:419", "@TestPlan:417", "@TestSuite:12"},
		Feature: publisher.Feature{Name: "Login"},
	}
}

func TestHooks_DisabledIntegrationTouchesNothing(t *testing.T) {
	t.Parallel()

	counts := &fakeCounts{}
	h := newTestHooks(t, counts, config.PublishModeSequential, false)
	ctx := context.Background()

	require.False(t, h.IsEnabled())

	h.BeforeAll(ctx, []publisher.Scenario{mappedScenario()})
	h.AfterScenario(ctx, &publisher.ScenarioResult{Scenario: mappedScenario(), Status: publisher.StatusPassed})
	h.AfterAll(ctx)

	require.Zero(t, counts.pointFetches.Load())
	require.Zero(t, counts.runCreates.Load())
	require.Zero(t, counts.runCompletes.Load())
}

func TestHooks_SequentialModePublishesPerScenario(t *testing.T) {
	t.Parallel()

	counts := &fakeCounts{}
	h := newTestHooks(t, counts, config.PublishModeSequential, true)
	ctx := context.Background()

	h.BeforeAll(ctx, []publisher.Scenario{mappedScenario()})
	require.Equal(t, int32(1), counts.runCreates.Load())

	h.AfterScenario(ctx, &publisher.ScenarioResult{
		Scenario: mappedScenario(),
		Status:   publisher.StatusPassed,
		Duration: 1200 * time.Millisecond,
	})

	// Sequential mode: the result is visible before suite completion.
	require.Equal(t, int32(1), counts.resultPatches.Load())

	h.AfterAll(ctx)
	require.Equal(t, int32(1), counts.runCompletes.Load())
	require.Zero(t, h.RemoteFailures())
}

func TestHooks_BatchedModeDefersUntilAfterAll(t *testing.T) {
	t.Parallel()

	counts := &fakeCounts{}
	h := newTestHooks(t, counts, config.PublishModeBatched, true)
	ctx := context.Background()

	h.BeforeAll(ctx, []publisher.Scenario{mappedScenario()})

	h.AfterScenario(ctx, &publisher.ScenarioResult{
		Scenario: mappedScenario(),
		Status:   publisher.StatusPassed,
	})

	// Batched mode: nothing published until the drain.
	require.Zero(t, counts.resultPatches.Load())

	h.AfterAll(ctx)
	require.Equal(t, int32(1), counts.resultPatches.Load())
	require.Equal(t, int32(1), counts.runCompletes.Load())
}

func TestHooks_HasADOMapping(t *testing.T) {
	t.Parallel()

	counts := &fakeCounts{}
	h := newTestHooks(t, counts, config.PublishModeBatched, true)

	require.True(t, h.HasADOMapping([]string{"@TestCase:419"}, nil))
	require.False(t, h.HasADOMapping([]string{"@smoke"}, []string{"@regression"}))
}

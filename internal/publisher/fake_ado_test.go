package publisher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/testbridge/adopub/internal/ado"
	"github.com/testbridge/adopub/internal/config"
)

// fakeADO is an in-memory stand-in for the Azure DevOps REST API. It records
// every call so tests can assert on exact call counts and payloads.
type fakeADO struct {
	t *testing.T

	mu sync.Mutex

	// points holds the test points served per (plan, suite) pair.
	points map[PlanSuite][]ado.TestPoint
	// failPoints makes point fetches for a pair return 500.
	failPoints    map[PlanSuite]bool
	failRunCreate bool

	pointFetches  []PlanSuite
	runsCreated   []ado.RunCreateRequest
	resultUpdates [][]ado.ResultUpdate
	attachments   []ado.AttachmentRequest
	bugBodies     []string
	runCompleted  int

	nextRunID int
}

var (
	pointsPathRe  = regexp.MustCompile(`^/contoso/webshop/_apis/test/Plans/(\d+)/Suites/(\d+)/points$`)
	runPathRe     = regexp.MustCompile(`^/contoso/webshop/_apis/test/runs/(\d+)$`)
	resultsPathRe = regexp.MustCompile(`^/contoso/webshop/_apis/test/runs/(\d+)/results$`)
	attachPathRe  = regexp.MustCompile(`^/contoso/webshop/_apis/test/runs/(\d+)/attachments$`)
)

func newFakeADO(t *testing.T) *fakeADO {
	return &fakeADO{
		t:          t,
		points:     make(map[PlanSuite][]ado.TestPoint),
		failPoints: make(map[PlanSuite]bool),
		nextRunID:  1000,
	}
}

// addPoint registers one test point for a pair.
func (f *fakeADO) addPoint(pair PlanSuite, pointID, caseID int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.points[pair] = append(f.points[pair], ado.TestPoint{
		ID:       pointID,
		TestCase: ado.TestCaseRef{ID: fmt.Sprintf("%d", caseID)},
	})
}

func (f *fakeADO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path

	switch {
	case pointsPathRe.MatchString(path) && r.Method == http.MethodGet:
		m := pointsPathRe.FindStringSubmatch(path)
		pair := PlanSuite{Plan: atoi(m[1]), Suite: atoi(m[2])}
		f.pointFetches = append(f.pointFetches, pair)

		if f.failPoints[pair] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, ado.TestPointList{Count: len(f.points[pair]), Value: f.points[pair]})

	case path == "/contoso/webshop/_apis/test/runs" && r.Method == http.MethodPost:
		if f.failRunCreate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req ado.RunCreateRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.runsCreated = append(f.runsCreated, req)

		f.nextRunID++
		writeJSON(w, ado.TestRun{ID: f.nextRunID, Name: req.Name, State: ado.RunStateInProgress})

	case resultsPathRe.MatchString(path) && r.Method == http.MethodGet:
		// One result slot per point of the run, result ID = point ID + 50000.
		var slots []ado.TestResult
		require.NotEmpty(f.t, f.runsCreated, "results fetched before run creation")

		last := f.runsCreated[len(f.runsCreated)-1]
		for _, pointID := range last.PointIDs {
			for _, points := range f.points {
				for _, p := range points {
					if p.ID == pointID {
						slots = append(slots, ado.TestResult{ID: pointID + 50000, TestCase: p.TestCase})
					}
				}
			}
		}
		writeJSON(w, ado.TestResultList{Count: len(slots), Value: slots})

	case resultsPathRe.MatchString(path) && r.Method == http.MethodPatch:
		var updates []ado.ResultUpdate
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&updates))
		f.resultUpdates = append(f.resultUpdates, updates)
		writeJSON(w, ado.TestResultList{})

	case runPathRe.MatchString(path) && r.Method == http.MethodPatch:
		var req ado.RunUpdateRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(f.t, ado.RunStateCompleted, req.State)
		require.NotEmpty(f.t, req.CompletedDate)
		f.runCompleted++
		writeJSON(w, ado.TestRun{State: ado.RunStateCompleted})

	case attachPathRe.MatchString(path) && r.Method == http.MethodPost:
		var req ado.AttachmentRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.attachments = append(f.attachments, req)
		writeJSON(w, ado.AttachmentReference{ID: "att-1", URL: "https://example/att-1"})

	case path == "/contoso/webshop/_apis/wit/workitems/$Bug" && r.Method == http.MethodPost:
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)
		f.bugBodies = append(f.bugBodies, string(body))
		writeJSON(w, ado.WorkItem{ID: 88, URL: "https://example/wit/88"})

	case path == "/contoso/webshop/_apis/wit/attachments" && r.Method == http.MethodPost:
		writeJSON(w, ado.AttachmentReference{ID: "wit-att", URL: "https://example/wit-att"})

	case regexp.MustCompile(`^/contoso/webshop/_apis/wit/workitems/\d+$`).MatchString(path) && r.Method == http.MethodPatch:
		writeJSON(w, ado.WorkItem{ID: 88})

	default:
		f.t.Logf("fake ado: unhandled %s %s", r.Method, path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeADO) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pointFetches)
}

func (f *fakeADO) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runsCreated)
}

func (f *fakeADO) updates() []ado.ResultUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()

	var flat []ado.ResultUpdate
	for _, batch := range f.resultUpdates {
		flat = append(flat, batch...)
	}
	return flat
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func atoi(s string) int {
	var n int
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

// newTestPublisher wires a publisher against the fake server.
func newTestPublisher(t *testing.T, fake *fakeADO, mutate func(*config.Config)) (*Publisher, *httptest.Server) {
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Enabled:         true,
		Organization:    "contoso",
		Project:         "webshop",
		PAT:             "secret",
		APIVersion:      "7.1",
		BaseURL:         server.URL,
		RequestTimeout:  2 * time.Second,
		RetryCount:      1,
		RetryDelay:      time.Millisecond,
		PublishMode:     config.PublishModeBatched,
		UpdateTestCases: true,
		Uploads:         config.UploadConfig{Screenshots: true},
	}
	if mutate != nil {
		mutate(cfg)
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	client, err := ado.NewClient(log, cfg)
	require.NoError(t, err)

	return NewPublisher(log, cfg, client), server
}

// taggedScenario builds a scenario carrying a full remote mapping.
func taggedScenario(feature, name string, caseID, plan, suite int) Scenario {
	return Scenario{
		Name: name,
		Tags: []string{
			fmt.Sprintf("@TestCase:%d", caseID),
			fmt.Sprintf("@TestPlan:%d", plan),
			fmt.Sprintf("@TestSuite:%d", suite),
		},
		Feature: Feature{Name: feature},
	}
}

// Package ado provides the authenticated REST transport for Azure DevOps.
package ado

// TestCaseRef identifies a remotely tracked test case.
type TestCaseRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// TestPoint is a scheduling slot binding one test case to one (plan, suite)
// pair for a specific run.
type TestPoint struct {
	ID       int         `json:"id"`
	TestCase TestCaseRef `json:"testCase"`
}

// TestPointList is the envelope returned by the points endpoint.
type TestPointList struct {
	Count int         `json:"count"`
	Value []TestPoint `json:"value"`
}

// PlanRef references a test plan by ID.
type PlanRef struct {
	ID string `json:"id"`
}

// RunCreateRequest is the payload for creating a test run scoped to a fixed
// set of test points.
type RunCreateRequest struct {
	Name      string   `json:"name"`
	Plan      *PlanRef `json:"plan,omitempty"`
	PointIDs  []int    `json:"pointIds,omitempty"`
	Automated bool     `json:"automated"`
}

// TestRun is the remote run container.
type TestRun struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// RunUpdateRequest transitions a run's state.
type RunUpdateRequest struct {
	State         string `json:"state"`
	CompletedDate string `json:"completedDate,omitempty"`
}

// TestResult is one result slot inside a run, created by the service when the
// run is scoped to test points.
type TestResult struct {
	ID       int         `json:"id"`
	TestCase TestCaseRef `json:"testCase"`
	Outcome  string      `json:"outcome,omitempty"`
}

// TestResultList is the envelope returned by the run results endpoint.
type TestResultList struct {
	Count int          `json:"count"`
	Value []TestResult `json:"value"`
}

// ResultUpdate patches one existing result inside a run.
type ResultUpdate struct {
	ID           int    `json:"id"`
	Outcome      string `json:"outcome"`
	State        string `json:"state"`
	DurationInMS int64  `json:"durationInMs"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	StackTrace   string `json:"stackTrace,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

// AttachmentRequest uploads a base64-encoded artifact onto a run.
type AttachmentRequest struct {
	Stream         string `json:"stream"`
	FileName       string `json:"fileName"`
	AttachmentType string `json:"attachmentType"`
	Comment        string `json:"comment,omitempty"`
}

// AttachmentReference is returned for an uploaded attachment.
type AttachmentReference struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PatchOperation is one entry of a JSON-patch document for work item APIs.
type PatchOperation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// WorkItem is a created work item such as a bug.
type WorkItem struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// Project is the project descriptor used by the connectivity check.
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Remote outcome vocabulary.
const (
	OutcomePassed      = "Passed"
	OutcomeFailed      = "Failed"
	OutcomeNotExecuted = "NotExecuted"
)

// Run states.
const (
	RunStateInProgress = "InProgress"
	RunStateCompleted  = "Completed"
)

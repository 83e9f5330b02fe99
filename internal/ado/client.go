// Package ado provides the authenticated REST transport for Azure DevOps.
package ado

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/testbridge/adopub/internal/config"
)

// Client issues authenticated REST calls against one Azure DevOps project.
// Requests are retried with linear backoff and optionally routed through a
// proxy with a per-request bypass list.
type Client struct {
	rest *resty.Client
	log  logrus.FieldLogger

	// orgBase is the organization-scoped API base, used by the few endpoints
	// that live outside the project scope.
	orgBase string
	project string
}

// NewClient creates a transport bound to the configured organization/project.
func NewClient(log logrus.FieldLogger, cfg *config.Config) (*Client, error) {
	transport, err := buildTransport(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("building http transport: %w", err)
	}

	baseDelay := cfg.RetryDelay

	rest := resty.NewWithClient(&http.Client{Transport: transport}).
		SetBaseURL(fmt.Sprintf("%s/%s/%s/_apis",
			strings.TrimRight(cfg.BaseURL, "/"),
			url.PathEscape(cfg.Organization),
			url.PathEscape(cfg.Project))).
		SetBasicAuth("", cfg.PAT).
		SetTimeout(cfg.RequestTimeout).
		SetQueryParam("api-version", cfg.APIVersion).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount - 1).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			// Linear backoff: delay grows with the attempt number.
			attempt := 1
			if resp != nil && resp.Request != nil {
				attempt = resp.Request.Attempt
			}
			return baseDelay * time.Duration(attempt), nil
		}).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				// Network failure or timeout counts as a failed attempt.
				return true
			}
			// Only server-side and throttling statuses are transient.
			return resp.StatusCode() >= http.StatusInternalServerError ||
				resp.StatusCode() == http.StatusTooManyRequests
		})

	return &Client{
		rest: rest,
		log:  log.WithField("component", "ado_client"),
		orgBase: fmt.Sprintf("%s/%s/_apis",
			strings.TrimRight(cfg.BaseURL, "/"),
			url.PathEscape(cfg.Organization)),
		project: cfg.Project,
	}, nil
}

// buildTransport creates the HTTP transport, wiring the proxy and its bypass
// list when enabled. Bypass patterns are matched as substrings of the full
// request URL.
func buildTransport(proxy config.ProxyConfig) (*http.Transport, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	if !proxy.Enabled {
		return transport, nil
	}

	proxyURL := &url.URL{
		Scheme: string(proxy.Protocol),
		Host:   fmt.Sprintf("%s:%d", proxy.Host, proxy.Port),
	}
	if proxy.Username != "" {
		proxyURL.User = url.UserPassword(proxy.Username, proxy.Password)
	}

	if _, err := url.Parse(proxyURL.String()); err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	bypass := proxy.Bypass
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		target := req.URL.String()
		for _, pattern := range bypass {
			if strings.Contains(target, pattern) {
				return nil, nil
			}
		}
		return proxyURL, nil
	}

	return transport, nil
}

// Request issues one call against the project API base. On 2xx the response
// body is decoded into out when out is non-nil; otherwise the raw body is
// discarded. Non-2xx responses become an *APIError carrying the final
// attempt's status and body.
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	start := time.Now()

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("executing %s %s: %w", method, path, err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode(),
		"attempts": resp.Request.Attempt,
		"duration": time.Since(start),
	}).Debug("ado request completed")

	if !resp.IsSuccess() {
		return &APIError{
			Status: resp.StatusCode(),
			Body:   resp.String(),
			Method: method,
			Path:   path,
		}
	}

	return nil
}

// requestJSONPatch is Request with the json-patch content type required by
// the work item tracking endpoints.
func (c *Client) requestJSONPatch(ctx context.Context, method, path string, ops []PatchOperation, out interface{}) error {
	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json-patch+json").
		SetBody(ops)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("executing %s %s: %w", method, path, err)
	}

	if !resp.IsSuccess() {
		return &APIError{
			Status: resp.StatusCode(),
			Body:   resp.String(),
			Method: method,
			Path:   path,
		}
	}

	return nil
}

// GetProject fetches the project descriptor. Used as a connectivity and
// credential check before a suite runs.
func (c *Client) GetProject(ctx context.Context) (*Project, error) {
	var project Project
	path := fmt.Sprintf("/projects/%s", url.PathEscape(c.project))

	// The projects endpoint lives at organization scope, not project scope.
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&project).
		Get(c.orgBase + path)
	if err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &APIError{Status: resp.StatusCode(), Body: resp.String(), Method: http.MethodGet, Path: path}
	}

	return &project, nil
}

// FetchTestPoints returns all test points registered under one (plan, suite)
// pair.
func (c *Client) FetchTestPoints(ctx context.Context, planID, suiteID int) ([]TestPoint, error) {
	var list TestPointList
	path := fmt.Sprintf("/test/Plans/%d/Suites/%d/points", planID, suiteID)

	if err := c.Request(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("fetching test points for plan %d suite %d: %w", planID, suiteID, err)
	}

	return list.Value, nil
}

// CreateTestRun creates a remote run scoped to the given point IDs and marks
// it in progress.
func (c *Client) CreateTestRun(ctx context.Context, name string, planID int, pointIDs []int) (*TestRun, error) {
	body := RunCreateRequest{
		Name:      name,
		PointIDs:  pointIDs,
		Automated: true,
	}
	if planID > 0 {
		body.Plan = &PlanRef{ID: fmt.Sprintf("%d", planID)}
	}

	var run TestRun
	if err := c.Request(ctx, http.MethodPost, "/test/runs", body, &run); err != nil {
		return nil, fmt.Errorf("creating test run: %w", err)
	}

	return &run, nil
}

// GetRunResults lists the result slots the service created for a run.
func (c *Client) GetRunResults(ctx context.Context, runID int) ([]TestResult, error) {
	var list TestResultList
	path := fmt.Sprintf("/test/runs/%d/results", runID)

	if err := c.Request(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("fetching results for run %d: %w", runID, err)
	}

	return list.Value, nil
}

// UpdateTestResults patches existing result slots inside a run.
func (c *Client) UpdateTestResults(ctx context.Context, runID int, updates []ResultUpdate) error {
	path := fmt.Sprintf("/test/runs/%d/results", runID)

	if err := c.Request(ctx, http.MethodPatch, path, updates, nil); err != nil {
		return fmt.Errorf("updating results for run %d: %w", runID, err)
	}

	return nil
}

// CompleteTestRun transitions a run to Completed with the given timestamp.
func (c *Client) CompleteTestRun(ctx context.Context, runID int, completed time.Time) error {
	path := fmt.Sprintf("/test/runs/%d", runID)
	body := RunUpdateRequest{
		State:         RunStateCompleted,
		CompletedDate: completed.UTC().Format(time.RFC3339),
	}

	if err := c.Request(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("completing run %d: %w", runID, err)
	}

	return nil
}

// UploadRunAttachment attaches one base64-encoded artifact to a run.
func (c *Client) UploadRunAttachment(ctx context.Context, runID int, att AttachmentRequest) (*AttachmentReference, error) {
	var ref AttachmentReference
	path := fmt.Sprintf("/test/runs/%d/attachments", runID)

	if err := c.Request(ctx, http.MethodPost, path, att, &ref); err != nil {
		return nil, fmt.Errorf("uploading attachment %s to run %d: %w", att.FileName, runID, err)
	}

	return &ref, nil
}

// CreateBug creates a Bug work item from a JSON-patch document.
func (c *Client) CreateBug(ctx context.Context, ops []PatchOperation) (*WorkItem, error) {
	var item WorkItem
	if err := c.requestJSONPatch(ctx, http.MethodPost, "/wit/workitems/$Bug", ops, &item); err != nil {
		return nil, fmt.Errorf("creating bug: %w", err)
	}

	return &item, nil
}

// UploadWorkItemAttachment uploads raw bytes to the work item attachment
// store and returns the reference used to link it to a work item.
func (c *Client) UploadWorkItemAttachment(ctx context.Context, fileName string, data []byte) (*AttachmentReference, error) {
	var ref AttachmentReference

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetQueryParam("fileName", fileName).
		SetBody(data).
		SetResult(&ref).
		Post("/wit/attachments")
	if err != nil {
		return nil, fmt.Errorf("uploading work item attachment %s: %w", fileName, err)
	}
	if !resp.IsSuccess() {
		return nil, &APIError{Status: resp.StatusCode(), Body: resp.String(), Method: http.MethodPost, Path: "/wit/attachments"}
	}

	return &ref, nil
}

// LinkAttachmentToWorkItem adds an AttachedFile relation to a work item.
func (c *Client) LinkAttachmentToWorkItem(ctx context.Context, workItemID int, attachmentURL, comment string) error {
	ops := []PatchOperation{
		{
			Op:   "add",
			Path: "/relations/-",
			Value: map[string]interface{}{
				"rel": "AttachedFile",
				"url": attachmentURL,
				"attributes": map[string]string{
					"comment": comment,
				},
			},
		},
	}

	path := fmt.Sprintf("/wit/workitems/%d", workItemID)
	if err := c.requestJSONPatch(ctx, http.MethodPatch, path, ops, nil); err != nil {
		return fmt.Errorf("linking attachment to work item %d: %w", workItemID, err)
	}

	return nil
}

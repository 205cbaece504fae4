// Package adapter contains the infrastructure adapters used by the qtsync engine:
// the qTest REST client, runner event sources and the summary store.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

// APIVersion is the qTest REST API version the client targets.
const APIVersion = "v3"

const (
	testRunsPageSize = 999
	maxResponseBody  = 8 << 20

	parentTypeTestSuite = "test-suite"
)

var errEmptyBody = errors.New("no body found in response")

// RemoteError is returned for any non-2xx, empty or unparsable response.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "qtest %s failed", e.Op)

	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}

	return b.String()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// QTestClient is the narrow request/response contract with the test-management system.
type QTestClient interface {
	// ListTestRuns returns every test run of a suite keyed by test case id.
	ListTestRuns(ctx context.Context, suiteID string) (m.RunMapping, error)
	// GetTestCase looks up the canonical test case.
	GetTestCase(ctx context.Context, testCaseID string) (m.TestCase, error)
	// CreateSuite creates a suite under the given parent and returns its id.
	CreateSuite(ctx context.Context, parentType, parentID, name string) (string, error)
	// CreateTestRun looks up the test case and creates a run for it in the suite.
	CreateTestRun(ctx context.Context, suiteID, testCaseID string) (m.TestRun, error)
	// PostExecutionLog submits an automation log for a test run.
	PostExecutionLog(ctx context.Context, runID string, log m.ExecutionLog) error
}

// ClientOption customizes an HTTPQTestClient.
type ClientOption func(*HTTPQTestClient)

// WithBaseURL overrides the API root (scheme and host) derived from the configured host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *HTTPQTestClient) {
		c.apiURL = strings.TrimRight(baseURL, "/") + "/api/" + APIVersion
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPQTestClient) {
		c.http = client
	}
}

// WithRetryInterval sets the first delay between GET retries.
func WithRetryInterval(interval time.Duration) ClientOption {
	return func(c *HTTPQTestClient) {
		c.retryInterval = interval
	}
}

// HTTPQTestClient talks to the qTest REST API with a bearer token.
type HTTPQTestClient struct {
	host          string
	token         string
	projectID     string
	apiURL        string
	http          *http.Client
	limiter       *rate.Limiter
	retries       int
	retryInterval time.Duration
}

// NewHTTPQTestClient builds a client scoped to the configured project.
func NewHTTPQTestClient(cfg *m.Config, opts ...ClientOption) *HTTPQTestClient {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	client := &HTTPQTestClient{
		host:          cfg.Host,
		token:         cfg.BearerToken,
		projectID:     cfg.ProjectID,
		apiURL:        "https://" + cfg.Host + "/api/" + APIVersion,
		http:          &http.Client{Timeout: cfg.Timeout},
		limiter:       rate.NewLimiter(limit, 1),
		retries:       max(cfg.Retries, 0),
		retryInterval: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

type flexID string

// UnmarshalJSON accepts ids encoded either as numbers or strings.
func (id *flexID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = ""
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = flexID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	*id = flexID(n.String())

	return nil
}

type testRunResponse struct {
	ID       flexID `json:"id"`
	Name     string `json:"name"`
	TestCase struct {
		ID flexID `json:"id"`
	} `json:"test_case"`
}

type testRunsPage struct {
	Items []testRunResponse `json:"items"`
	Total int               `json:"total"`
}

type entityResponse struct {
	ID      flexID `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type createSuiteRequest struct {
	ParentID   string `json:"parentId"`
	ParentType string `json:"parentType"`
	Name       string `json:"name"`
}

type createTestRunRequest struct {
	ParentID   string `json:"parentId"`
	ParentType string `json:"parentType"`
	Name       string `json:"name"`
	TestCase   struct {
		ID string `json:"id"`
	} `json:"test_case"`
}

// ListTestRuns implements QTestClient.
func (c *HTTPQTestClient) ListTestRuns(ctx context.Context, suiteID string) (m.RunMapping, error) {
	mapping := m.RunMapping{}

	for page := 1; ; page++ {
		query := url.Values{
			"parentId":   {suiteID},
			"parentType": {parentTypeTestSuite},
			"page":       {strconv.Itoa(page)},
			"pageSize":   {strconv.Itoa(testRunsPageSize)},
		}

		var body testRunsPage
		if err := c.get(ctx, "list test runs", "/test-runs", query, &body); err != nil {
			return nil, err
		}

		known := len(mapping)

		for _, run := range body.Items {
			mapping[string(run.TestCase.ID)] = m.TestRun{ID: string(run.ID), Name: run.Name}
		}

		// Servers that ignore paging repeat the first page.
		if len(body.Items) < testRunsPageSize || len(mapping) == known ||
			(body.Total > 0 && len(mapping) >= body.Total) {
			break
		}
	}

	slog.Debug("listed test runs", "suiteID", suiteID, "count", len(mapping))

	return mapping, nil
}

// GetTestCase implements QTestClient.
func (c *HTTPQTestClient) GetTestCase(ctx context.Context, testCaseID string) (m.TestCase, error) {
	var body entityResponse

	path := "/test-cases/" + url.PathEscape(testCaseID)
	if err := c.get(ctx, "get test case", path, nil, &body); err != nil {
		return m.TestCase{}, err
	}

	if body.ID == "" {
		return m.TestCase{}, &RemoteError{Op: "get test case", Body: body.Message, Err: fmt.Errorf("test case %s not found", testCaseID)}
	}

	return m.TestCase{ID: string(body.ID), Name: body.Name}, nil
}

// CreateSuite implements QTestClient.
func (c *HTTPQTestClient) CreateSuite(ctx context.Context, parentType, parentID, name string) (string, error) {
	query := url.Values{"parentId": {parentID}, "parentType": {parentType}}
	payload := createSuiteRequest{ParentID: parentID, ParentType: parentType, Name: name}

	var body entityResponse
	if err := c.post(ctx, "create test suite", "/test-suites", query, payload, &body); err != nil {
		return "", err
	}

	if body.ID == "" {
		return "", &RemoteError{Op: "create test suite", Body: body.Message, Err: errors.New("response has no id")}
	}

	slog.Info("created test suite", "suiteID", body.ID, "parentType", parentType, "parentID", parentID, "name", name)

	return string(body.ID), nil
}

// CreateTestRun implements QTestClient.
func (c *HTTPQTestClient) CreateTestRun(ctx context.Context, suiteID, testCaseID string) (m.TestRun, error) {
	testCase, err := c.GetTestCase(ctx, testCaseID)
	if err != nil {
		return m.TestRun{}, err
	}

	query := url.Values{"parentId": {suiteID}, "parentType": {parentTypeTestSuite}}
	payload := createTestRunRequest{ParentID: suiteID, ParentType: parentTypeTestSuite, Name: testCase.Name}
	payload.TestCase.ID = testCaseID

	var body entityResponse
	if err := c.post(ctx, "create test run", "/test-runs", query, payload, &body); err != nil {
		return m.TestRun{}, err
	}

	if body.ID == "" {
		return m.TestRun{}, &RemoteError{Op: "create test run", Body: body.Message, Err: errors.New("response has no id")}
	}

	name := body.Name
	if name == "" {
		name = testCase.Name
	}

	return m.TestRun{ID: string(body.ID), Name: name}, nil
}

// PostExecutionLog implements QTestClient.
func (c *HTTPQTestClient) PostExecutionLog(ctx context.Context, runID string, log m.ExecutionLog) error {
	var body entityResponse

	path := "/test-runs/" + url.PathEscape(runID) + "/auto-test-logs"
	if err := c.post(ctx, "post test log", path, nil, log, &body); err != nil {
		return err
	}

	if body.ID == "" {
		return &RemoteError{Op: "post test log", Body: body.Message, Err: errors.New("response has no id")}
	}

	return nil
}

// get performs an idempotent request, retrying transport errors and 5xx responses.
func (c *HTTPQTestClient) get(ctx context.Context, op, path string, query url.Values, out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	attempt := 0
	operation := func() error {
		attempt++

		err := c.do(ctx, op, http.MethodGet, path, query, nil, out)
		if err == nil || !retryable(ctx, err) {
			return permanent(err)
		}

		slog.Warn("retrying qtest request", "op", op, "attempt", attempt, "error", err)

		return err
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retries)), ctx))
}

func (c *HTTPQTestClient) post(ctx context.Context, op, path string, query url.Values, payload, out any) error {
	return c.do(ctx, op, http.MethodPost, path, query, payload, out)
}

func (c *HTTPQTestClient) do(ctx context.Context, op, method, path string, query url.Values, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("qtest %s: %w", op, err)
	}

	endpoint := c.apiURL + "/projects/" + url.PathEscape(c.projectID) + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("qtest %s: encode request: %w", op, err)
		}

		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("qtest %s: build request: %w", op, err)
	}

	req.Header.Set("Authorization", "bearer "+c.token)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("qtest request", "op", op, "method", method, "url", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("qtest %s: %w", op, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "op", op, "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: errEmptyBody}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("parse body: %w", err)}
	}

	return nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.StatusCode >= http.StatusInternalServerError
	}

	return true
}

func permanent(err error) error {
	if err == nil {
		return nil
	}

	return backoff.Permanent(err)
}

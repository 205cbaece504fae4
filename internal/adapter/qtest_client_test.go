package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPQTestClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := m.DefaultConfig()
	cfg.Host = "acme.qtestnet.com"
	cfg.BearerToken = "secret"
	cfg.ProjectID = "42"

	return NewHTTPQTestClient(&cfg, WithBaseURL(server.URL), WithRetryInterval(time.Millisecond))
}

func TestHTTPQTestClient_ListTestRuns(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v3/projects/42/test-runs", r.URL.Path)
		assert.Equal(t, "bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.Equal(t, "123", r.URL.Query().Get("parentId"))
		assert.Equal(t, "test-suite", r.URL.Query().Get("parentType"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "999", r.URL.Query().Get("pageSize"))

		_, _ = fmt.Fprint(w, `{"items":[
			{"id": 501, "name": "Case One", "test_case": {"id": 11}},
			{"id": "502", "name": "Case Two", "test_case": {"id": "TC-2"}}
		],"total":2}`)
	})

	mapping, err := client.ListTestRuns(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, m.RunMapping{
		"11":   {ID: "501", Name: "Case One"},
		"TC-2": {ID: "502", Name: "Case Two"},
	}, mapping)
}

func TestHTTPQTestClient_ListTestRuns_FollowsFullPages(t *testing.T) {
	var pages atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)

		var page testRunsPage

		if r.URL.Query().Get("page") == "1" {
			for i := range testRunsPageSize {
				run := testRunResponse{ID: flexID(fmt.Sprintf("r%d", i)), Name: "n"}
				run.TestCase.ID = flexID(fmt.Sprintf("c%d", i))
				page.Items = append(page.Items, run)
			}
		} else {
			run := testRunResponse{ID: "last", Name: "n"}
			run.TestCase.ID = "clast"
			page.Items = append(page.Items, run)
		}

		assert.NoError(t, json.NewEncoder(w).Encode(page))
	})

	mapping, err := client.ListTestRuns(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, mapping, testRunsPageSize+1)
	assert.Equal(t, int32(2), pages.Load())
	assert.Equal(t, "last", mapping["clast"].ID)
}

func fullTestRunsPage(total int) testRunsPage {
	page := testRunsPage{Total: total}

	for i := range testRunsPageSize {
		run := testRunResponse{ID: flexID(fmt.Sprintf("r%d", i)), Name: "n"}
		run.TestCase.ID = flexID(fmt.Sprintf("c%d", i))
		page.Items = append(page.Items, run)
	}

	return page
}

func TestHTTPQTestClient_ListTestRuns_StopsWhenPagingIsIgnored(t *testing.T) {
	tests := []struct {
		name  string
		total int
		pages int32
	}{
		{"total reached", testRunsPageSize, 1},
		{"no total", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pages atomic.Int32

			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				pages.Add(1)
				assert.NoError(t, json.NewEncoder(w).Encode(fullTestRunsPage(tt.total)))
			})

			mapping, err := client.ListTestRuns(context.Background(), "1")
			require.NoError(t, err)
			assert.Len(t, mapping, testRunsPageSize)
			assert.Equal(t, tt.pages, pages.Load())
		})
	}
}

func TestHTTPQTestClient_ListTestRuns_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"bad token"}`},
		{"empty body", http.StatusOK, ""},
		{"malformed body", http.StatusOK, "<html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			_, err := client.ListTestRuns(context.Background(), "1")
			require.Error(t, err)

			var remoteErr *RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, "list test runs", remoteErr.Op)
			assert.Equal(t, tt.status, remoteErr.StatusCode)
		})
	}
}

func TestHTTPQTestClient_GetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		_, _ = fmt.Fprint(w, `{"id": 7, "name": "Login"}`)
	})

	testCase, err := client.GetTestCase(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, m.TestCase{ID: "7", Name: "Login"}, testCase)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPQTestClient_GetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message":"not found"}`)
	})

	_, err := client.GetTestCase(context.Background(), "404")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPQTestClient_CreateSuite(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/projects/42/test-suites", r.URL.Path)
		assert.Equal(t, "release", r.URL.Query().Get("parentType"))
		assert.Equal(t, "REL-9", r.URL.Query().Get("parentId"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req createSuiteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, createSuiteRequest{ParentID: "REL-9", ParentType: "release", Name: "Nightly"}, req)

		_, _ = fmt.Fprint(w, `{"id": 456}`)
	})

	suiteID, err := client.CreateSuite(context.Background(), "release", "REL-9", "Nightly")
	require.NoError(t, err)
	assert.Equal(t, "456", suiteID)
}

func TestHTTPQTestClient_CreateSuite_NoID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"message":"parent not found"}`)
	})

	_, err := client.CreateSuite(context.Background(), "release", "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parent not found")
}

func TestHTTPQTestClient_CreateTestRun(t *testing.T) {
	var posts atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v3/projects/42/test-cases/TC-2":
			_, _ = fmt.Fprint(w, `{"id": "TC-2", "name": "Logout"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v3/projects/42/test-runs":
			posts.Add(1)
			assert.Equal(t, "456", r.URL.Query().Get("parentId"))

			var req createTestRunRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Logout", req.Name)
			assert.Equal(t, "TC-2", req.TestCase.ID)
			assert.Equal(t, "test-suite", req.ParentType)

			_, _ = fmt.Fprint(w, `{"id": 900, "name": "Logout"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})

	run, err := client.CreateTestRun(context.Background(), "456", "TC-2")
	require.NoError(t, err)
	assert.Equal(t, m.TestRun{ID: "900", Name: "Logout"}, run)
	assert.Equal(t, int32(1), posts.Load())
}

func TestHTTPQTestClient_CreateTestRun_UnknownTestCase(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			t.Errorf("test run must not be created for an unknown test case")
		}

		_, _ = fmt.Fprint(w, `{"message":"Test case not found"}`)
	})

	_, err := client.CreateTestRun(context.Background(), "456", "nope")
	require.Error(t, err)
}

func TestHTTPQTestClient_PostExecutionLog(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v3/projects/42/test-runs/R1/auto-test-logs", r.URL.Path)

		var log m.ExecutionLog
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&log))
		assert.Equal(t, "PASS", log.Status)
		assert.Equal(t, "Case One", log.Name)

		_, _ = fmt.Fprint(w, `{"id": 1}`)
	})

	err := client.PostExecutionLog(context.Background(), "R1", m.ExecutionLog{Name: "Case One", Status: "PASS"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPQTestClient_PostExecutionLog_NotRetried(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := client.PostExecutionLog(context.Background(), "R1", m.ExecutionLog{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFlexID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want flexID
	}{
		{`123`, "123"},
		{`"TC-1"`, "TC-1"},
		{`null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var id flexID
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

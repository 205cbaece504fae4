// Package mocks provides testify mocks for the adapter interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

// MockQTestClient is a mock implementation of adapter.QTestClient.
type MockQTestClient struct {
	mock.Mock
}

// NewMockQTestClient creates a MockQTestClient whose expectations are asserted on cleanup.
func NewMockQTestClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockQTestClient {
	client := &MockQTestClient{}
	client.Mock.Test(t)

	t.Cleanup(func() { client.AssertExpectations(t) })

	return client
}

// ListTestRuns provides a mock function.
func (c *MockQTestClient) ListTestRuns(ctx context.Context, suiteID string) (m.RunMapping, error) {
	args := c.Called(ctx, suiteID)

	mapping, _ := args.Get(0).(m.RunMapping)

	return mapping, args.Error(1)
}

// GetTestCase provides a mock function.
func (c *MockQTestClient) GetTestCase(ctx context.Context, testCaseID string) (m.TestCase, error) {
	args := c.Called(ctx, testCaseID)

	return args.Get(0).(m.TestCase), args.Error(1)
}

// CreateSuite provides a mock function.
func (c *MockQTestClient) CreateSuite(ctx context.Context, parentType, parentID, name string) (string, error) {
	args := c.Called(ctx, parentType, parentID, name)

	return args.String(0), args.Error(1)
}

// CreateTestRun provides a mock function.
func (c *MockQTestClient) CreateTestRun(ctx context.Context, suiteID, testCaseID string) (m.TestRun, error) {
	args := c.Called(ctx, suiteID, testCaseID)

	return args.Get(0).(m.TestRun), args.Error(1)
}

// PostExecutionLog provides a mock function.
func (c *MockQTestClient) PostExecutionLog(ctx context.Context, runID string, log m.ExecutionLog) error {
	args := c.Called(ctx, runID, log)

	return args.Error(0)
}

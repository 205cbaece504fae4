// Package mocks provides testify mocks for the domain interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"qtsync.dev/pkg/qtsync/internal/domain"
	m "qtsync.dev/pkg/qtsync/internal/model"
)

// MockWorkflow is a mock implementation of domain.Workflow.
type MockWorkflow struct {
	mock.Mock
}

// NewMockWorkflow creates a MockWorkflow whose expectations are asserted on cleanup.
func NewMockWorkflow(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWorkflow {
	workflow := &MockWorkflow{}
	workflow.Mock.Test(t)

	t.Cleanup(func() { workflow.AssertExpectations(t) })

	return workflow
}

// Sync provides a mock function.
func (w *MockWorkflow) Sync(ctx context.Context, args domain.SyncArgs) (m.Summary, error) {
	ret := w.Called(ctx, args)

	summary, _ := ret.Get(0).(m.Summary)

	return summary, ret.Error(1)
}

// View provides a mock function.
func (w *MockWorkflow) View(ctx context.Context, args domain.ViewArgs) error {
	ret := w.Called(ctx, args)

	return ret.Error(0)
}

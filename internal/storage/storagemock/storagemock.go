// Package storagemock holds testify mocks for the storage interfaces.
package storagemock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// MockTaskRepository is a mock of storage.TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

// NewMockTaskRepository returns a mock that asserts its expectations on test
// cleanup.
func NewMockTaskRepository(t *testing.T) *MockTaskRepository {
	m := &MockTaskRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTaskRepository) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) UpdateTask(ctx context.Context, taskID string, update storage.TaskUpdate) error {
	args := m.Called(ctx, taskID, update)
	return args.Error(0)
}

func (m *MockTaskRepository) ListTasks(ctx context.Context) ([]model.Task, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Task), args.Error(1)
}

// MockRunJournal is a mock of storage.RunJournal.
type MockRunJournal struct {
	mock.Mock
}

// NewMockRunJournal returns a mock that asserts its expectations on test
// cleanup.
func NewMockRunJournal(t *testing.T) *MockRunJournal {
	m := &MockRunJournal{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRunJournal) CreateRun(ctx context.Context, r model.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRunJournal) CloseRun(ctx context.Context, runID string, status model.RunStatus, finishedAt time.Time, exitCode int) error {
	args := m.Called(ctx, runID, status, finishedAt, exitCode)
	return args.Error(0)
}

func (m *MockRunJournal) ListOpenRuns(ctx context.Context) ([]model.Run, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Run), args.Error(1)
}

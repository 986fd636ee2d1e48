package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
)

var _ coordinator.Service = (*MockService)(nil)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

// Run executes the run
func (m *MockService) Run(ctx context.Context) (coordinator.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.Result), args.Error(1)
}

// Status returns the run status
func (m *MockService) Status(ctx context.Context) (coordinator.RunStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.RunStatus), args.Error(1)
}

// ListRounds lists round records with pagination
func (m *MockService) ListRounds(ctx context.Context, offset, limit uint64) (coordinator.RoundPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(coordinator.RoundPage), args.Error(1)
}

// GetRound retrieves a round record by number
func (m *MockService) GetRound(ctx context.Context, round int) (fl.RoundRecord, error) {
	args := m.Called(ctx, round)
	return args.Get(0).(fl.RoundRecord), args.Error(1)
}

// GetModel returns the current global model
func (m *MockService) GetModel(ctx context.Context) (fl.GlobalModel, error) {
	args := m.Called(ctx)
	return args.Get(0).(fl.GlobalModel), args.Error(1)
}

// ListSessions lists participant sessions
func (m *MockService) ListSessions(ctx context.Context) ([]coordinator.SessionInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]coordinator.SessionInfo), args.Error(1)
}

package schedulerdb

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/autosave-fi/autosave/internal/types"
)

type MockSchedulerStorage struct {
	mock.Mock
}

func (m *MockSchedulerStorage) UpsertPlan(ctx context.Context, plan types.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockSchedulerStorage) GetCachedPlan(ctx context.Context, id string) (types.Plan, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Plan), args.Error(1)
}

func (m *MockSchedulerStorage) ListCachedPlans(ctx context.Context) ([]types.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Plan), args.Error(1)
}

func (m *MockSchedulerStorage) AppendExecution(ctx context.Context, record types.ExecutionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSchedulerStorage) ExecutionHistory(ctx context.Context, planID string, take int, skip int) (types.ExecutionHistoryList, error) {
	args := m.Called(ctx, planID, take, skip)
	return args.Get(0).(types.ExecutionHistoryList), args.Error(1)
}

func (m *MockSchedulerStorage) Cursor(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockSchedulerStorage) SetCursor(ctx context.Context, height uint64) error {
	args := m.Called(ctx, height)
	return args.Error(0)
}

func (m *MockSchedulerStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

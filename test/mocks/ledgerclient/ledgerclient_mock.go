package ledgerclient

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/relay"
)

type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) GetPlan(ctx context.Context, planID string) (types.Plan, error) {
	args := m.Called(ctx, planID)
	return args.Get(0).(types.Plan), args.Error(1)
}

func (m *MockLedgerClient) CurrentHeight(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockLedgerClient) EventsInRange(ctx context.Context, from uint64, to uint64, kind types.EventKind) ([]types.Event, error) {
	args := m.Called(ctx, from, to, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Event), args.Error(1)
}

func (m *MockLedgerClient) Execute(ctx context.Context, planID string) (*relay.ExecuteResponse, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relay.ExecuteResponse), args.Error(1)
}

func (m *MockLedgerClient) WithdrawCredit(ctx context.Context) (*relay.WithdrawResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relay.WithdrawResponse), args.Error(1)
}

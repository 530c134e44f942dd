package mocks

import (
	"context"

	"github.com/dukex/hireflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockRemoteAPI is a mock of the remote recruiting API client.
type MockRemoteAPI struct {
	mock.Mock
}

func (m *MockRemoteAPI) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockRemoteAPI) ListStages(ctx context.Context, workflowID string) ([]*models.Stage, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Stage), args.Error(1)
}

func (m *MockRemoteAPI) ListPositions(ctx context.Context, workflowID string) ([]*models.Position, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Position), args.Error(1)
}

func (m *MockRemoteAPI) GetPosition(ctx context.Context, positionID string) (*models.Position, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Position), args.Error(1)
}

func (m *MockRemoteAPI) UpdatePosition(ctx context.Context, positionID string, changes map[string]any) (*models.Position, error) {
	args := m.Called(ctx, positionID, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Position), args.Error(1)
}

func (m *MockRemoteAPI) MoveToStage(ctx context.Context, positionID, stageID string) (*models.Position, error) {
	args := m.Called(ctx, positionID, stageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Position), args.Error(1)
}

func (m *MockRemoteAPI) PerformAction(ctx context.Context, positionID, action string, payload map[string]string) (*models.Position, error) {
	args := m.Called(ctx, positionID, action, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Position), args.Error(1)
}

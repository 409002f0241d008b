// Package mocks provides testify mocks for the persistence and
// subscription boundaries.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// MockDealRepository is a mock implementation of persistence.DealRepository.
type MockDealRepository struct {
	mock.Mock
}

func (m *MockDealRepository) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Deal), args.Error(1)
}

func (m *MockDealRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Deal, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Deal), args.Error(1)
}

func (m *MockDealRepository) Save(ctx context.Context, deal *models.Deal) error {
	args := m.Called(ctx, deal)

	return args.Error(0)
}

func (m *MockDealRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockDealRepository) AppendTriggerRecords(ctx context.Context, dealID string, records []models.TriggerRecord) error {
	args := m.Called(ctx, dealID, records)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockWorkflowRepository) FindActive(ctx context.Context, ownerID, event string) ([]*models.Workflow, error) {
	args := m.Called(ctx, ownerID, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)

	return args.Int(0), args.Error(1)
}

// MockPersistence bundles mock repositories behind the persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Deals     *MockDealRepository
	Workflows *MockWorkflowRepository
	Catalog   persistence.CatalogRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Deals:     &MockDealRepository{},
		Workflows: &MockWorkflowRepository{},
	}
}

func (m *MockPersistence) DealRepository() persistence.DealRepository {
	return m.Deals
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) CatalogRepository() persistence.CatalogRepository {
	return m.Catalog
}

func (m *MockPersistence) HealthCheck(_ context.Context) error {
	return nil
}

func (m *MockPersistence) Close(_ context.Context) error {
	return nil
}

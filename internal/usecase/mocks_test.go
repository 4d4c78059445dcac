package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/xavierca1/dataverse-contacts/internal/entity"
	"github.com/xavierca1/dataverse-contacts/internal/infra/integration/dataverse"
	"github.com/xavierca1/dataverse-contacts/internal/infra/queue"
)

type MockContactGateway struct {
	mock.Mock
}

func (m *MockContactGateway) Ready(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockContactGateway) Create(ctx context.Context, rec dataverse.ContactRecord) (uuid.UUID, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockContactGateway) RetrieveMultiple(ctx context.Context, top int) ([]dataverse.ContactRow, error) {
	args := m.Called(ctx, top)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dataverse.ContactRow), args.Error(1)
}

func (m *MockContactGateway) Update(ctx context.Context, id uuid.UUID, rec dataverse.ContactRecord) error {
	args := m.Called(ctx, id, rec)
	return args.Error(0)
}

func (m *MockContactGateway) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockQueueProducer struct {
	mock.Mock
}

func (m *MockQueueProducer) PublishContactEvent(ctx context.Context, event queue.ContactEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockOperationRecorder struct {
	mock.Mock
}

func (m *MockOperationRecorder) Record(ctx context.Context, op *entity.ContactOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

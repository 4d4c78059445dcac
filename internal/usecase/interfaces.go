package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xavierca1/dataverse-contacts/internal/entity"
	"github.com/xavierca1/dataverse-contacts/internal/infra/integration/dataverse"
	"github.com/xavierca1/dataverse-contacts/internal/infra/queue"
)

// ContactGateway is the remote CRM.
type ContactGateway interface {
	Ready(ctx context.Context) error
	Create(ctx context.Context, rec dataverse.ContactRecord) (uuid.UUID, error)
	RetrieveMultiple(ctx context.Context, top int) ([]dataverse.ContactRow, error)
	Update(ctx context.Context, id uuid.UUID, rec dataverse.ContactRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type QueueProducerInterface interface {
	PublishContactEvent(ctx context.Context, event queue.ContactEvent) error
}

type OperationRecorder interface {
	Record(ctx context.Context, op *entity.ContactOperation) error
}

// ContactUseCase proxies contact operations to the CRM. Events and Audit are
// optional.
type ContactUseCase struct {
	Gateway   ContactGateway
	Events    QueueProducerInterface
	Audit     OperationRecorder
	Logger    logrus.FieldLogger
	ListLimit int
}

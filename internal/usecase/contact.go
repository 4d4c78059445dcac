package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xavierca1/dataverse-contacts/internal/entity"
	"github.com/xavierca1/dataverse-contacts/internal/infra/integration/dataverse"
	"github.com/xavierca1/dataverse-contacts/internal/infra/queue"
)

const DefaultListLimit = 10

func NewContactUseCase(
	gateway ContactGateway,
	events QueueProducerInterface,
	audit OperationRecorder,
	logger logrus.FieldLogger,
) *ContactUseCase {
	return &ContactUseCase{
		Gateway:   gateway,
		Events:    events,
		Audit:     audit,
		Logger:    logger,
		ListLimit: DefaultListLimit,
	}
}

// Ready fails with SERVICE_UNAVAILABLE when the CRM cannot be reached or
// authenticated against.
func (uc *ContactUseCase) Ready(ctx context.Context) error {
	if err := uc.Gateway.Ready(ctx); err != nil {
		return &TechnicalError{
			Code:    CodeServiceUnavailable,
			Message: "CRM service is not ready: " + err.Error(),
			Err:     err,
		}
	}
	return nil
}

func (uc *ContactUseCase) Create(ctx context.Context, input ContactInput) (*ContactResultOutput, error) {
	id, err := uc.Gateway.Create(ctx, toRecord(input))
	if err != nil {
		return nil, remoteError("create contact", err)
	}

	uc.afterWrite(ctx, entity.OperationCreate, queue.EventContactCreated, id, input)
	return &ContactResultOutput{Message: MsgContactCreated, Id: id}, nil
}

func (uc *ContactUseCase) List(ctx context.Context) ([]ContactOutput, error) {
	rows, err := uc.Gateway.RetrieveMultiple(ctx, uc.ListLimit)
	if err != nil {
		return nil, remoteError("list contacts", err)
	}
	if len(rows) > uc.ListLimit {
		rows = rows[:uc.ListLimit]
	}

	out := make([]ContactOutput, 0, len(rows))
	for _, r := range rows {
		out = append(out, ContactOutput{
			Id:        r.ContactID,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.EmailAddress1,
		})
	}
	return out, nil
}

func (uc *ContactUseCase) Update(ctx context.Context, id uuid.UUID, input ContactInput) (*ContactResultOutput, error) {
	if err := uc.Gateway.Update(ctx, id, toRecord(input)); err != nil {
		return nil, remoteError("update contact", err)
	}

	uc.afterWrite(ctx, entity.OperationUpdate, queue.EventContactUpdated, id, input)
	return &ContactResultOutput{Message: MsgContactUpdated, Id: id}, nil
}

func (uc *ContactUseCase) Delete(ctx context.Context, id uuid.UUID) (*ContactResultOutput, error) {
	if err := uc.Gateway.Delete(ctx, id); err != nil {
		return nil, remoteError("delete contact", err)
	}

	uc.afterWrite(ctx, entity.OperationDelete, queue.EventContactDeleted, id, ContactInput{})
	return &ContactResultOutput{Message: MsgContactDeleted, Id: id}, nil
}

// afterWrite audits and announces a write that already succeeded remotely.
// Failures here are logged and never change the answer.
func (uc *ContactUseCase) afterWrite(ctx context.Context, op entity.OperationKind, evt queue.EventType, id uuid.UUID, input ContactInput) {
	log := uc.Logger.WithFields(logrus.Fields{"operation": op, "contact_id": id})

	if uc.Audit != nil {
		if err := uc.Audit.Record(ctx, entity.NewContactOperation(op, id, entity.OutcomeSucceeded)); err != nil {
			log.WithError(err).Warn("audit record failed")
		}
	}

	if uc.Events != nil {
		contact := entity.Contact{ID: id, FirstName: input.FirstName, LastName: input.LastName, Email: input.Email}
		event := queue.ContactEvent{
			Type:      evt,
			ContactID: contact.ID,
			Name:      contact.DisplayName(),
			FirstName: entity.StringValue(contact.FirstName),
			LastName:  entity.StringValue(contact.LastName),
			Email:     entity.StringValue(contact.Email),
		}
		if err := uc.Events.PublishContactEvent(ctx, event); err != nil {
			log.WithError(err).Warn("contact event not published")
		}
	}

	log.Info("contact operation completed")
}

func toRecord(input ContactInput) dataverse.ContactRecord {
	return dataverse.ContactRecord{
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		EmailAddress1: input.Email,
	}
}

func remoteError(op string, err error) error {
	if errors.Is(err, dataverse.ErrNotFound) {
		return &DomainError{
			Code:    CodeContactNotFound,
			Message: "contact not found",
			Err:     err,
		}
	}
	return &TechnicalError{
		Code:    CodeRemoteError,
		Message: fmt.Sprintf("%s failed: %v", op, err),
		Err:     err,
	}
}

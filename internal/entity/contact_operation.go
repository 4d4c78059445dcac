package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OperationKind string

const (
	OperationCreate OperationKind = "CREATE"
	OperationList   OperationKind = "LIST"
	OperationUpdate OperationKind = "UPDATE"
	OperationDelete OperationKind = "DELETE"
)

const (
	OutcomeSucceeded = "SUCCEEDED"
	OutcomeFailed    = "FAILED"
)

// ContactOperation is one audited write against the CRM.
type ContactOperation struct {
	ID         string        `json:"id"`
	Operation  OperationKind `json:"operation"`
	ContactID  uuid.UUID     `json:"contact_id"`
	Outcome    string        `json:"outcome"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewContactOperation(op OperationKind, contactID uuid.UUID, outcome string) *ContactOperation {
	return &ContactOperation{
		ID:         uuid.New().String(),
		Operation:  op,
		ContactID:  contactID,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}
}

type ContactOperationRepositoryInterface interface {
	Record(ctx context.Context, op *ContactOperation) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xavierca1/dataverse-contacts/internal/entity"
)

const createOperationsTable = `
	CREATE TABLE IF NOT EXISTS contact_operations (
		id          UUID PRIMARY KEY,
		operation   TEXT NOT NULL,
		contact_id  UUID NOT NULL,
		outcome     TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS contact_operations_occurred_at_idx
		ON contact_operations (occurred_at)
`

type ContactOperationRepository struct {
	DB *sql.DB
}

func NewContactOperationRepository(db *sql.DB) *ContactOperationRepository {
	return &ContactOperationRepository{DB: db}
}

func (r *ContactOperationRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, createOperationsTable); err != nil {
		return fmt.Errorf("creating contact_operations: %w", err)
	}
	return nil
}

func (r *ContactOperationRepository) Record(ctx context.Context, op *entity.ContactOperation) error {
	query := `
		INSERT INTO contact_operations (id, operation, contact_id, outcome, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.DB.ExecContext(ctx, query,
		op.ID,
		string(op.Operation),
		op.ContactID.String(),
		op.Outcome,
		op.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("recording %s of %s: %w", op.Operation, op.ContactID, err)
	}
	return nil
}

// PurgeOlderThan deletes audit rows that occurred before cutoff.
func (r *ContactOperationRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM contact_operations WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging contact_operations: %w", err)
	}
	return res.RowsAffected()
}

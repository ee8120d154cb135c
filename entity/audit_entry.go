package entity

import (
	"context"
	"time"
)

type AuditEntry struct {
	ID            uint64    `db:"id" json:"id"`
	Actor         string    `db:"actor" json:"actor"`
	Action        string    `db:"action" json:"action"`
	TransactionID *string   `db:"transaction_id" json:"transactionId,omitempty"`
	Payload       string    `db:"payload" json:"payload"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// AuditEntriesRepo is append-only.
type AuditEntriesRepo interface {
	Append(ctx context.Context, entry *AuditEntry) error
	FindByTransactionID(ctx context.Context, txID string) ([]*AuditEntry, error)
}

package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
)

type auditEntriesRepo basePostgresRepo

func NewAuditEntriesRepo(table string, db *db.DB) entity.AuditEntriesRepo {
	return (*auditEntriesRepo)(newBasePostgresRepo(table, db))
}

func (r *auditEntriesRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	payload := entry.Payload
	if payload == "" {
		payload = "{}"
	}
	q, args, err := sq.Insert(r.table).
		Columns("actor", "action", "transaction_id", "payload", "created_at").
		Values(entry.Actor, entry.Action, entry.TransactionID, payload, entry.CreatedAt).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	err = r.db.GetContext(ctx, &entry.ID, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert audit entry: %w", err)
	}
	return nil
}

func (r *auditEntriesRepo) FindByTransactionID(ctx context.Context, txID string) ([]*entity.AuditEntry, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"transaction_id": txID}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	entries := make([]*entity.AuditEntry, 0, 8)
	err = r.db.SelectContext(ctx, &entries, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get audit entries: %w", err)
	}
	return entries, nil
}

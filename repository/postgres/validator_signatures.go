package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
)

type validatorSignaturesRepo basePostgresRepo

func NewValidatorSignaturesRepo(table string, db *db.DB) entity.ValidatorSignaturesRepo {
	return (*validatorSignaturesRepo)(newBasePostgresRepo(table, db))
}

func (r *validatorSignaturesRepo) Append(ctx context.Context, sig *entity.ValidatorSignature) error {
	q, args, err := sq.Insert(r.table).
		Columns("transaction_id", "validator_id", "signature", "message_hash", "created_at").
		Values(sig.TransactionID, sig.ValidatorID, sig.Signature, sig.MessageHash, sig.CreatedAt).
		Suffix("ON CONFLICT (transaction_id, validator_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	n, err := r.db.ExecAffected(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert validator signature: %w", err)
	}
	if n == 0 {
		return entity.ErrDuplicateSignature
	}
	return nil
}

func (r *validatorSignaturesRepo) FindByTransactionID(ctx context.Context, txID string) ([]*entity.ValidatorSignature, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"transaction_id": txID}).
		OrderBy("created_at", "validator_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	sigs := make([]*entity.ValidatorSignature, 0, 4)
	err = r.db.SelectContext(ctx, &sigs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get validator signatures: %w", err)
	}
	return sigs, nil
}

func (r *validatorSignaturesRepo) CountByTransactionID(ctx context.Context, txID string) (uint, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"transaction_id": txID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	err = r.db.GetContext(ctx, &count, q, args...)
	if err != nil {
		return 0, fmt.Errorf("can't count validator signatures: %w", err)
	}
	return count, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
)

type bridgeTransactionsRepo basePostgresRepo

func NewBridgeTransactionsRepo(table string, db *db.DB) entity.BridgeTransactionsRepo {
	return (*bridgeTransactionsRepo)(newBasePostgresRepo(table, db))
}

func (r *bridgeTransactionsRepo) Create(ctx context.Context, tx *entity.BridgeTransaction) error {
	q, args, err := sq.Insert(r.table).
		Columns("id", "source_kind", "destination_kind", "source_chain", "destination_chain",
			"source_address", "destination_address", "amount", "fee", "status",
			"source_tx_hash", "verification_hash", "created_at", "updated_at", "claimed_until").
		Values(tx.ID, tx.SourceKind, tx.DestinationKind, tx.SourceChain, tx.DestinationChain,
			tx.SourceAddress, tx.DestinationAddress, tx.Amount, tx.Fee, tx.Status,
			tx.SourceTxHash, tx.VerificationHash, tx.CreatedAt, tx.CreatedAt, tx.ClaimedUntil).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert bridge transaction: %w", err)
	}
	return nil
}

func (r *bridgeTransactionsRepo) GetByID(ctx context.Context, id string) (*entity.BridgeTransaction, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	tx := new(entity.BridgeTransaction)
	err = r.db.GetContext(ctx, tx, q, args...)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get bridge transaction: %w", err)
	}
	return tx, nil
}

func (r *bridgeTransactionsRepo) FindByAddress(ctx context.Context, address string, filter *entity.TransactionFilter) ([]*entity.BridgeTransaction, error) {
	cond := sq.And{sq.Or{
		sq.Eq{"source_address": address},
		sq.Eq{"destination_address": address},
	}}
	builder := sq.Select("*").From(r.table)
	if filter != nil {
		if len(filter.Statuses) > 0 {
			cond = append(cond, sq.Eq{"status": filter.Statuses})
		}
		if filter.Chain != "" {
			cond = append(cond, sq.Or{
				sq.Eq{"source_chain": filter.Chain},
				sq.Eq{"destination_chain": filter.Chain},
			})
		}
		if filter.CreatedAfter != nil {
			cond = append(cond, sq.Gt{"created_at": *filter.CreatedAfter})
		}
		if filter.Limit > 0 {
			builder = builder.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			builder = builder.Offset(filter.Offset)
		}
	}
	q, args, err := builder.
		Where(cond).
		OrderBy("created_at DESC", "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	txs := make([]*entity.BridgeTransaction, 0, 10)
	err = r.db.SelectContext(ctx, &txs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get bridge transactions by address: %w", err)
	}
	return txs, nil
}

func (r *bridgeTransactionsRepo) FindBySourceTxHash(ctx context.Context, chain, txHash string) ([]*entity.BridgeTransaction, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"source_chain": chain, "source_tx_hash": txHash}).
		OrderBy("created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	txs := make([]*entity.BridgeTransaction, 0, 1)
	err = r.db.SelectContext(ctx, &txs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get bridge transactions by source hash: %w", err)
	}
	return txs, nil
}

func (r *bridgeTransactionsRepo) FindPending(ctx context.Context, statuses []entity.Status, olderThan *time.Time, limit uint64) ([]*entity.BridgeTransaction, error) {
	cond := sq.And{sq.Eq{"status": statuses}}
	if olderThan != nil {
		cond = append(cond, sq.Lt{"created_at": *olderThan})
	}
	builder := sq.Select("*").
		From(r.table).
		Where(cond).
		OrderBy("created_at")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	q, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	txs := make([]*entity.BridgeTransaction, 0, 10)
	err = r.db.SelectContext(ctx, &txs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get pending bridge transactions: %w", err)
	}
	return txs, nil
}

func (r *bridgeTransactionsRepo) FindRefundable(ctx context.Context, limit uint64) ([]*entity.BridgeTransaction, error) {
	builder := sq.Select("*").
		From(r.table).
		Where(sq.Eq{
			"status":              entity.StatusFailed,
			"source_kind":         entity.ChainKindNative,
			"destination_tx_hash": nil,
		}).
		Where(sq.NotEq{"source_tx_hash": nil}).
		Where(sq.Or{sq.Eq{"claimed_until": nil}, sq.Expr("claimed_until < NOW()")}).
		OrderBy("created_at")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	q, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	txs := make([]*entity.BridgeTransaction, 0, 10)
	err = r.db.SelectContext(ctx, &txs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get refundable bridge transactions: %w", err)
	}
	return txs, nil
}

func (r *bridgeTransactionsRepo) FindUnsigned(ctx context.Context, validatorID string, statuses []entity.Status, limit uint64) ([]*entity.BridgeTransaction, error) {
	builder := sq.Select("t.*").
		From(r.table+" t").
		Where(sq.Eq{"t.status": statuses}).
		Where(sq.Expr("NOT EXISTS (SELECT 1 FROM validator_signatures s WHERE s.transaction_id = t.id AND s.validator_id = ?)", validatorID)).
		OrderBy("t.created_at")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	q, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	txs := make([]*entity.BridgeTransaction, 0, 10)
	err = r.db.SelectContext(ctx, &txs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get unsigned bridge transactions: %w", err)
	}
	return txs, nil
}

func (r *bridgeTransactionsRepo) UpdateStatus(ctx context.Context, id string, expected, next entity.Status, upd *entity.StatusUpdate) (bool, error) {
	if !entity.CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, expected, next)
	}
	builder := sq.Update(r.table).
		Set("status", next).
		Set("claimed_until", nil).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": expected})
	if upd != nil {
		if upd.SourceTxHash != nil {
			builder = builder.Set("source_tx_hash", *upd.SourceTxHash)
		}
		if upd.DestinationTxHash != nil {
			builder = builder.Set("destination_tx_hash", *upd.DestinationTxHash)
		} else if upd.ClearDestinationTxHash {
			builder = builder.Set("destination_tx_hash", nil)
		}
		if upd.ErrorMessage != nil {
			builder = builder.Set("error_message", *upd.ErrorMessage)
		}
		if upd.CompletedAt != nil {
			builder = builder.Set("completed_at", *upd.CompletedAt)
		}
	}
	q, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	n, err := r.db.ExecAffected(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't update bridge transaction status: %w", err)
	}
	return n == 1, nil
}

func (r *bridgeTransactionsRepo) SetDestinationTxHash(ctx context.Context, id, txHash string) (bool, error) {
	q, args, err := sq.Update(r.table).
		Set("destination_tx_hash", txHash).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": entity.StatusMinting, "destination_tx_hash": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	n, err := r.db.ExecAffected(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't set destination transaction hash: %w", err)
	}
	return n == 1, nil
}

func (r *bridgeTransactionsRepo) IncrementRetryCount(ctx context.Context, id string, expected entity.Status, maxRetries uint) (bool, error) {
	q, args, err := sq.Update(r.table).
		Set("retry_count", sq.Expr("retry_count + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": expected}).
		Where(sq.Lt{"retry_count": maxRetries}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	n, err := r.db.ExecAffected(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't increment retry count: %w", err)
	}
	return n == 1, nil
}

func (r *bridgeTransactionsRepo) Claim(ctx context.Context, id string, expected entity.Status, until time.Time) (bool, error) {
	q, args, err := sq.Update(r.table).
		Set("claimed_until", until).
		Where(sq.Eq{"id": id, "status": expected}).
		Where(sq.Or{
			sq.Eq{"claimed_until": nil},
			sq.Expr("claimed_until < NOW()"),
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	n, err := r.db.ExecAffected(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't claim bridge transaction: %w", err)
	}
	return n == 1, nil
}

func (r *bridgeTransactionsRepo) Unclaim(ctx context.Context, id string) error {
	q, args, err := sq.Update(r.table).
		Set("claimed_until", nil).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't unclaim bridge transaction: %w", err)
	}
	return nil
}

type statisticsRow struct {
	Status           entity.Status `db:"status"`
	SourceChain      string        `db:"source_chain"`
	DestinationChain string        `db:"destination_chain"`
	Count            uint64        `db:"count"`
	Volume           entity.Amount `db:"volume"`
	Fees             entity.Amount `db:"fees"`
}

func (r *bridgeTransactionsRepo) Statistics(ctx context.Context, since *time.Time) (*entity.Statistics, error) {
	builder := sq.Select("status", "source_chain", "destination_chain",
		"COUNT(*) AS count", "COALESCE(SUM(amount), 0) AS volume", "COALESCE(SUM(fee), 0) AS fees").
		From(r.table).
		GroupBy("status", "source_chain", "destination_chain")
	if since != nil {
		builder = builder.Where(sq.GtOrEq{"created_at": *since})
	}
	q, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	rows := make([]*statisticsRow, 0, 16)
	err = r.db.SelectContext(ctx, &rows, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get bridge statistics: %w", err)
	}
	stats := entity.NewStatistics()
	for _, row := range rows {
		stats.Record(row.Status, row.SourceChain, row.DestinationChain, row.Count, row.Volume, row.Fees)
	}
	return stats, nil
}

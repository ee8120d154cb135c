package alerts

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
)

type DBAlertsProvider struct {
	db *db.DB
}

func NewDBAlertsProvider(db *db.DB) *DBAlertsProvider {
	return &DBAlertsProvider{
		db: db,
	}
}

type StuckTransaction struct {
	ID               string        `db:"id" json:"tx_id"`
	Status           entity.Status `db:"status" json:"status"`
	SourceChain      string        `db:"source_chain" json:"source_chain"`
	DestinationChain string        `db:"destination_chain" json:"destination_chain"`
	RetryCount       uint          `db:"retry_count" json:"retry_count,string"`
	Age              int64         `db:"age" json:"_value,string"`
}

func (p *DBAlertsProvider) FindStuckTransactions(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := sq.Select("id", "status", "source_chain", "destination_chain", "retry_count", "EXTRACT(EPOCH FROM now() - updated_at)::bigint as age").
		From("bridge_transactions").
		Where(sq.Expr("status = ANY(?)", pq.Array(params.PendingStatuses))).
		Where(sq.Lt{"updated_at": time.Now().Add(-params.StuckThreshold)}).
		OrderBy("updated_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]StuckTransaction, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select stuck transactions: %w", err)
	}
	return res, nil
}

type UnrefundedFailure struct {
	ID            string        `db:"id" json:"tx_id"`
	SourceChain   string        `db:"source_chain" json:"source_chain"`
	SourceAddress string        `db:"source_address" json:"source_address"`
	Amount        entity.Amount `db:"amount" json:"amount"`
	Age           int64         `db:"age" json:"_value,string"`
}

func (p *DBAlertsProvider) FindUnrefundedFailures(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := sq.Select("id", "source_chain", "source_address", "amount", "EXTRACT(EPOCH FROM now() - updated_at)::bigint as age").
		From("bridge_transactions").
		Where(sq.Eq{
			"status":              entity.StatusFailed,
			"source_kind":         params.NativeKind,
			"destination_tx_hash": nil,
		}).
		Where(sq.NotEq{"source_tx_hash": nil}).
		OrderBy("updated_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]UnrefundedFailure, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select unrefunded failures: %w", err)
	}
	return res, nil
}

type SilentValidator struct {
	ID      string `db:"id" json:"validator"`
	Silence int64  `db:"silence" json:"_value,string"`
}

func (p *DBAlertsProvider) FindSilentValidators(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := sq.Select("id", "COALESCE(EXTRACT(EPOCH FROM now() - last_heartbeat_at)::bigint, -1) as silence").
		From("validators").
		Where(sq.Eq{"active": true}).
		Where(sq.Or{
			sq.Eq{"last_heartbeat_at": nil},
			sq.Lt{"last_heartbeat_at": time.Now().Add(-params.LivenessWindow)},
		}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]SilentValidator, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select silent validators: %w", err)
	}
	return res, nil
}

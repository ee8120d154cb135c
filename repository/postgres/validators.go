package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
)

type validatorsRepo basePostgresRepo

func NewValidatorsRepo(table string, db *db.DB) entity.ValidatorsRepo {
	return (*validatorsRepo)(newBasePostgresRepo(table, db))
}

func (r *validatorsRepo) Ensure(ctx context.Context, v *entity.Validator) error {
	q, args, err := sq.Insert(r.table).
		Columns("id", "active", "added_at").
		Values(v.ID, true, v.AddedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET active = TRUE, removed_at = NULL, " +
			"added_at = CASE WHEN " + r.table + ".active THEN " + r.table + ".added_at ELSE EXCLUDED.added_at END").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't ensure validator: %w", err)
	}
	return nil
}

func (r *validatorsRepo) Remove(ctx context.Context, id string, at time.Time) (bool, error) {
	q, args, err := sq.Update(r.table).
		Set("active", false).
		Set("removed_at", at).
		Where(sq.Eq{"id": id, "active": true}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	n, err := r.db.ExecAffected(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't remove validator: %w", err)
	}
	return n == 1, nil
}

func (r *validatorsRepo) GetByID(ctx context.Context, id string) (*entity.Validator, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	v := new(entity.Validator)
	err = r.db.GetContext(ctx, v, q, args...)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get validator: %w", err)
	}
	return v, nil
}

func (r *validatorsRepo) FindActive(ctx context.Context) ([]*entity.Validator, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	vals := make([]*entity.Validator, 0, 10)
	err = r.db.SelectContext(ctx, &vals, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get active validators: %w", err)
	}
	return vals, nil
}

func (r *validatorsRepo) CountLive(ctx context.Context, since time.Time) (uint, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"active": true}).
		Where(sq.Gt{"last_heartbeat_at": since}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	err = r.db.GetContext(ctx, &count, q, args...)
	if err != nil {
		return 0, fmt.Errorf("can't count live validators: %w", err)
	}
	return count, nil
}

func (r *validatorsRepo) RecordHeartbeat(ctx context.Context, hb *entity.Heartbeat) (bool, error) {
	q, args, err := sq.Update(r.table).
		Set("last_heartbeat_at", hb.At).
		Set("signed_count", hb.SignedCount).
		Set("failed_count", hb.FailedCount).
		Set("success_ratio", hb.SuccessRatio).
		Where(sq.Eq{"id": hb.ValidatorID, "active": true}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	n, err := r.db.ExecAffected(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't record validator heartbeat: %w", err)
	}
	return n == 1, nil
}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
)

type validatorsRepo store

func (r *validatorsRepo) Ensure(_ context.Context, v *entity.Validator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.validators[v.ID]; ok {
		if !existing.Active {
			existing.AddedAt = v.AddedAt
		}
		existing.Active = true
		existing.RemovedAt = nil
		return nil
	}
	r.validators[v.ID] = &entity.Validator{
		ID:      v.ID,
		Active:  true,
		AddedAt: v.AddedAt,
	}
	return nil
}

func (r *validatorsRepo) Remove(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[id]
	if !ok || !v.Active {
		return false, nil
	}
	v.Active = false
	v.RemovedAt = &at
	return true, nil
}

func (r *validatorsRepo) GetByID(_ context.Context, id string) (*entity.Validator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *validatorsRepo) FindActive(_ context.Context) ([]*entity.Validator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.Validator, 0, len(r.validators))
	for _, v := range r.validators {
		if v.Active {
			cp := *v
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *validatorsRepo) CountLive(_ context.Context, since time.Time) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count uint
	for _, v := range r.validators {
		if v.Live(since) {
			count++
		}
	}
	return count, nil
}

func (r *validatorsRepo) RecordHeartbeat(_ context.Context, hb *entity.Heartbeat) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[hb.ValidatorID]
	if !ok || !v.Active {
		return false, nil
	}
	at := hb.At
	v.LastHeartbeatAt = &at
	v.SignedCount = hb.SignedCount
	v.FailedCount = hb.FailedCount
	v.SuccessRatio = hb.SuccessRatio
	return true, nil
}

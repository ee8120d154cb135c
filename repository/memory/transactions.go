package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
)

type transactionsRepo store

func (r *transactionsRepo) Create(_ context.Context, tx *entity.BridgeTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[tx.ID]; ok {
		return fmt.Errorf("can't insert bridge transaction: duplicate id %s", tx.ID)
	}
	cp := cloneTransaction(tx)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	r.transactions[tx.ID] = cp
	return nil
}

func (r *transactionsRepo) GetByID(_ context.Context, id string) (*entity.BridgeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (r *transactionsRepo) FindByAddress(_ context.Context, address string, filter *entity.TransactionFilter) ([]*entity.BridgeTransaction, error) {
	if filter == nil {
		filter = new(entity.TransactionFilter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.BridgeTransaction, 0, 10)
	for _, tx := range r.transactions {
		if tx.SourceAddress != address && tx.DestinationAddress != address {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, tx.Status) {
			continue
		}
		if filter.Chain != "" && tx.SourceChain != filter.Chain && tx.DestinationChain != filter.Chain {
			continue
		}
		if filter.CreatedAfter != nil && !tx.CreatedAt.After(*filter.CreatedAfter) {
			continue
		}
		res = append(res, cloneTransaction(tx))
	}
	sortByCreatedAt(res, true)
	return limit(res, filter.Offset, filter.Limit), nil
}

func (r *transactionsRepo) FindBySourceTxHash(_ context.Context, chain, txHash string) ([]*entity.BridgeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.BridgeTransaction, 0, 1)
	for _, tx := range r.transactions {
		if tx.SourceChain == chain && tx.SourceTxHash != nil && *tx.SourceTxHash == txHash {
			res = append(res, cloneTransaction(tx))
		}
	}
	sortByCreatedAt(res, false)
	return res, nil
}

func (r *transactionsRepo) FindPending(_ context.Context, statuses []entity.Status, olderThan *time.Time, n uint64) ([]*entity.BridgeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.BridgeTransaction, 0, 10)
	for _, tx := range r.transactions {
		if !containsStatus(statuses, tx.Status) {
			continue
		}
		if olderThan != nil && !tx.CreatedAt.Before(*olderThan) {
			continue
		}
		res = append(res, cloneTransaction(tx))
	}
	sortByCreatedAt(res, false)
	return limit(res, 0, n), nil
}

func (r *transactionsRepo) FindRefundable(_ context.Context, n uint64) ([]*entity.BridgeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	res := make([]*entity.BridgeTransaction, 0, 10)
	for _, tx := range r.transactions {
		if tx.Refundable() && !tx.Claimed(now) {
			res = append(res, cloneTransaction(tx))
		}
	}
	sortByCreatedAt(res, false)
	return limit(res, 0, n), nil
}

func (r *transactionsRepo) FindUnsigned(_ context.Context, validatorID string, statuses []entity.Status, n uint64) ([]*entity.BridgeTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.BridgeTransaction, 0, 10)
	for _, tx := range r.transactions {
		if !containsStatus(statuses, tx.Status) || (*store)(r).signedBy(tx.ID, validatorID) {
			continue
		}
		res = append(res, cloneTransaction(tx))
	}
	sortByCreatedAt(res, false)
	return limit(res, 0, n), nil
}

func (r *transactionsRepo) UpdateStatus(_ context.Context, id string, expected, next entity.Status, upd *entity.StatusUpdate) (bool, error) {
	if !entity.CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, expected, next)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok || tx.Status != expected {
		return false, nil
	}
	tx.Status = next
	tx.ClaimedUntil = nil
	tx.UpdatedAt = time.Now().UTC()
	if upd != nil {
		if upd.SourceTxHash != nil {
			tx.SourceTxHash = cloneString(upd.SourceTxHash)
		}
		if upd.DestinationTxHash != nil {
			tx.DestinationTxHash = cloneString(upd.DestinationTxHash)
		} else if upd.ClearDestinationTxHash {
			tx.DestinationTxHash = nil
		}
		if upd.ErrorMessage != nil {
			tx.ErrorMessage = cloneString(upd.ErrorMessage)
		}
		if upd.CompletedAt != nil {
			tx.CompletedAt = cloneTime(upd.CompletedAt)
		}
	}
	return true, nil
}

func (r *transactionsRepo) SetDestinationTxHash(_ context.Context, id, txHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok || tx.Status != entity.StatusMinting || tx.DestinationTxHash != nil {
		return false, nil
	}
	tx.DestinationTxHash = &txHash
	tx.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *transactionsRepo) IncrementRetryCount(_ context.Context, id string, expected entity.Status, maxRetries uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok || tx.Status != expected || tx.RetryCount >= maxRetries {
		return false, nil
	}
	tx.RetryCount++
	tx.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *transactionsRepo) Claim(_ context.Context, id string, expected entity.Status, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok || tx.Status != expected || tx.Claimed(time.Now()) {
		return false, nil
	}
	tx.ClaimedUntil = &until
	return true, nil
}

func (r *transactionsRepo) Unclaim(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.transactions[id]; ok {
		tx.ClaimedUntil = nil
	}
	return nil
}

func (r *transactionsRepo) Statistics(_ context.Context, since *time.Time) (*entity.Statistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := entity.NewStatistics()
	for _, tx := range r.transactions {
		if since != nil && tx.CreatedAt.Before(*since) {
			continue
		}
		stats.Record(tx.Status, tx.SourceChain, tx.DestinationChain, 1, tx.Amount, tx.Fee)
	}
	return stats, nil
}

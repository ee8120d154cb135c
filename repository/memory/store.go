// Package memory implements the repository interfaces in process memory with
// the same conditional-update and uniqueness semantics as the postgres repos.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/repository"
)

type store struct {
	mu           sync.Mutex
	transactions map[string]*entity.BridgeTransaction
	signatures   map[string][]*entity.ValidatorSignature
	validators   map[string]*entity.Validator
	audit        []*entity.AuditEntry
}

func NewRepo() *repository.Repo {
	s := &store{
		transactions: make(map[string]*entity.BridgeTransaction),
		signatures:   make(map[string][]*entity.ValidatorSignature),
		validators:   make(map[string]*entity.Validator),
	}
	return &repository.Repo{
		Transactions: (*transactionsRepo)(s),
		Signatures:   (*signaturesRepo)(s),
		Validators:   (*validatorsRepo)(s),
		Audit:        (*auditRepo)(s),
	}
}

func cloneTransaction(tx *entity.BridgeTransaction) *entity.BridgeTransaction {
	cp := *tx
	cp.SourceTxHash = cloneString(tx.SourceTxHash)
	cp.DestinationTxHash = cloneString(tx.DestinationTxHash)
	cp.ErrorMessage = cloneString(tx.ErrorMessage)
	cp.CompletedAt = cloneTime(tx.CompletedAt)
	cp.ClaimedUntil = cloneTime(tx.ClaimedUntil)
	cp.Signatures = nil
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func containsStatus(statuses []entity.Status, status entity.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func sortByCreatedAt(txs []*entity.BridgeTransaction, desc bool) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		if desc {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
}

func limit[T any](items []T, offset, n uint64) []T {
	if offset >= uint64(len(items)) {
		return items[:0]
	}
	items = items[offset:]
	if n > 0 && n < uint64(len(items)) {
		items = items[:n]
	}
	return items
}

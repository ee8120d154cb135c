package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/xbridge/bridge-coordinator/entity"
)

type signaturesRepo store

func (s *store) signedBy(txID, validatorID string) bool {
	for _, sig := range s.signatures[txID] {
		if sig.ValidatorID == validatorID {
			return true
		}
	}
	return false
}

func (r *signaturesRepo) Append(_ context.Context, sig *entity.ValidatorSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[sig.TransactionID]; !ok {
		return fmt.Errorf("can't insert validator signature: unknown transaction %s", sig.TransactionID)
	}
	if (*store)(r).signedBy(sig.TransactionID, sig.ValidatorID) {
		return entity.ErrDuplicateSignature
	}
	cp := *sig
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.signatures[sig.TransactionID] = append(r.signatures[sig.TransactionID], &cp)
	return nil
}

func (r *signaturesRepo) FindByTransactionID(_ context.Context, txID string) ([]*entity.ValidatorSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.ValidatorSignature, 0, len(r.signatures[txID]))
	for _, sig := range r.signatures[txID] {
		cp := *sig
		res = append(res, &cp)
	}
	return res, nil
}

func (r *signaturesRepo) CountByTransactionID(_ context.Context, txID string) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint(len(r.signatures[txID])), nil
}

package memory

import (
	"context"
	"time"

	"github.com/xbridge/bridge-coordinator/entity"
)

type auditRepo store

func (r *auditRepo) Append(_ context.Context, entry *entity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uint64(len(r.audit) + 1)
	cp := *entry
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if cp.Payload == "" {
		cp.Payload = "{}"
	}
	r.audit = append(r.audit, &cp)
	return nil
}

func (r *auditRepo) FindByTransactionID(_ context.Context, txID string) ([]*entity.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*entity.AuditEntry, 0, 8)
	for _, e := range r.audit {
		if e.TransactionID != nil && *e.TransactionID == txID {
			cp := *e
			res = append(res, &cp)
		}
	}
	return res, nil
}

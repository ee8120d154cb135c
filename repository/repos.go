package repository

import (
	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/repository/postgres"
)

type Repo struct {
	Transactions entity.BridgeTransactionsRepo
	Signatures   entity.ValidatorSignaturesRepo
	Validators   entity.ValidatorsRepo
	Audit        entity.AuditEntriesRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Transactions: postgres.NewBridgeTransactionsRepo("bridge_transactions", db),
		Signatures:   postgres.NewValidatorSignaturesRepo("validator_signatures", db),
		Validators:   postgres.NewValidatorsRepo("validators", db),
		Audit:        postgres.NewAuditEntriesRepo("audit_entries", db),
	}
}

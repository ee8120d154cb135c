package entity

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrDuplicateSignature is returned when a validator already signed a transaction.
var ErrDuplicateSignature = errors.New("validator already signed this transaction")

type ValidatorSignature struct {
	TransactionID string        `db:"transaction_id" json:"-"`
	ValidatorID   string        `db:"validator_id" json:"validatorId"`
	Signature     hexutil.Bytes `db:"signature" json:"signature"`
	MessageHash   common.Hash   `db:"message_hash" json:"messageHash"`
	CreatedAt     time.Time     `db:"created_at" json:"timestamp"`
}

type ValidatorSignaturesRepo interface {
	// Append stores the signature unless the validator already signed the transaction,
	// in which case ErrDuplicateSignature is returned and nothing changes.
	Append(ctx context.Context, sig *ValidatorSignature) error
	FindByTransactionID(ctx context.Context, txID string) ([]*ValidatorSignature, error)
	CountByTransactionID(ctx context.Context, txID string) (uint, error)
}

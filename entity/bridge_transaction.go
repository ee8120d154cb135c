package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type BridgeTransaction struct {
	ID                 string        `db:"id" json:"id"`
	SourceKind         ChainKind     `db:"source_kind" json:"sourceKind"`
	DestinationKind    ChainKind     `db:"destination_kind" json:"destinationKind"`
	SourceChain        string        `db:"source_chain" json:"sourceChain"`
	DestinationChain   string        `db:"destination_chain" json:"destinationChain"`
	SourceAddress      string        `db:"source_address" json:"sourceAddress"`
	DestinationAddress string        `db:"destination_address" json:"destinationAddress"`
	Amount             Amount        `db:"amount" json:"amount"`
	Fee                Amount        `db:"fee" json:"fee"`
	Status             Status        `db:"status" json:"status"`
	SourceTxHash       *string       `db:"source_tx_hash" json:"sourceTransactionHash,omitempty"`
	DestinationTxHash  *string       `db:"destination_tx_hash" json:"destinationTransactionHash,omitempty"`
	VerificationHash   common.Hash   `db:"verification_hash" json:"verificationHash"`
	RetryCount         uint          `db:"retry_count" json:"retryCount"`
	ErrorMessage       *string       `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updatedAt"`
	CompletedAt        *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
	ClaimedUntil       *time.Time    `db:"claimed_until" json:"-"`

	Signatures []*ValidatorSignature `db:"-" json:"validatorSignatures,omitempty"`
}

func (tx *BridgeTransaction) Direction() Direction {
	return NewDirection(tx.SourceKind, tx.DestinationKind)
}

// NetAmount is the value delivered on the destination chain.
func (tx *BridgeTransaction) NetAmount() Amount {
	return tx.Amount - tx.Fee
}

func (tx *BridgeTransaction) Expired(now time.Time, validity time.Duration) bool {
	return now.Sub(tx.CreatedAt) > validity
}

// Claimed reports whether a worker holds the submission lease at now.
func (tx *BridgeTransaction) Claimed(now time.Time) bool {
	return tx.ClaimedUntil != nil && tx.ClaimedUntil.After(now)
}

// Refundable is true only for inbound transfers whose source funds entered bridge
// custody while no destination transfer is recorded.
func (tx *BridgeTransaction) Refundable() bool {
	return tx.Status == StatusFailed &&
		tx.Direction().Inbound() &&
		tx.SourceTxHash != nil &&
		tx.DestinationTxHash == nil
}

// StatusUpdate carries the fields written together with a conditional status change.
type StatusUpdate struct {
	SourceTxHash           *string
	DestinationTxHash      *string
	ClearDestinationTxHash bool
	ErrorMessage           *string
	CompletedAt            *time.Time
}

type TransactionFilter struct {
	Statuses     []Status
	Chain        string
	CreatedAfter *time.Time
	Limit        uint64
	Offset       uint64
}

type BridgeTransactionsRepo interface {
	Create(ctx context.Context, tx *BridgeTransaction) error
	GetByID(ctx context.Context, id string) (*BridgeTransaction, error)
	FindByAddress(ctx context.Context, address string, filter *TransactionFilter) ([]*BridgeTransaction, error)
	FindBySourceTxHash(ctx context.Context, chain, txHash string) ([]*BridgeTransaction, error)
	FindPending(ctx context.Context, statuses []Status, olderThan *time.Time, limit uint64) ([]*BridgeTransaction, error)
	// FindRefundable returns unclaimed records for which Refundable holds.
	FindRefundable(ctx context.Context, limit uint64) ([]*BridgeTransaction, error)
	FindUnsigned(ctx context.Context, validatorID string, statuses []Status, limit uint64) ([]*BridgeTransaction, error)
	// UpdateStatus moves the record to next only if it is currently in expected.
	// It reports false when another writer won the race. A status change ends any claim lease.
	UpdateStatus(ctx context.Context, id string, expected, next Status, upd *StatusUpdate) (bool, error)
	// SetDestinationTxHash records the relayer's submission while MINTING, once.
	SetDestinationTxHash(ctx context.Context, id, txHash string) (bool, error)
	IncrementRetryCount(ctx context.Context, id string, expected Status, maxRetries uint) (bool, error)
	// Claim takes the exclusive lease for a chain submission on a record in expected status.
	// It fails while another lease is still valid.
	Claim(ctx context.Context, id string, expected Status, until time.Time) (bool, error)
	Unclaim(ctx context.Context, id string) error
	Statistics(ctx context.Context, since *time.Time) (*Statistics, error)
}

package entity

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

type verificationFields struct {
	ID                 string
	SourceKind         string
	DestinationKind    string
	SourceChain        string
	DestinationChain   string
	SourceAddress      string
	DestinationAddress string
	Amount             uint64
	Fee                uint64
	CreatedAt          uint64
}

// ComputeVerificationHash hashes the immutable fields of tx. CreatedAt enters with
// microsecond precision, the resolution the repository keeps.
func ComputeVerificationHash(tx *BridgeTransaction) (common.Hash, error) {
	if tx.Amount < 0 || tx.Fee < 0 {
		return common.Hash{}, fmt.Errorf("%w: negative amount or fee", ErrInvalidAmount)
	}
	data, err := rlp.EncodeToBytes(&verificationFields{
		ID:                 tx.ID,
		SourceKind:         string(tx.SourceKind),
		DestinationKind:    string(tx.DestinationKind),
		SourceChain:        tx.SourceChain,
		DestinationChain:   tx.DestinationChain,
		SourceAddress:      tx.SourceAddress,
		DestinationAddress: tx.DestinationAddress,
		Amount:             uint64(tx.Amount),
		Fee:                uint64(tx.Fee),
		CreatedAt:          uint64(tx.CreatedAt.UnixMicro()),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't encode verification fields: %w", err)
	}
	return crypto.Keccak256Hash(data), nil
}

// MessageHash is the digest a validator signs for tx.
func MessageHash(verificationHash common.Hash, validatorID string) common.Hash {
	return crypto.Keccak256Hash(verificationHash.Bytes(), []byte(validatorID))
}

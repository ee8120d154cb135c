// Package ledger defines the boundary between the coordinator and the chains it bridges.
// Every amount crossing it is an entity.Amount; adapters convert to chain-native units.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xbridge/bridge-coordinator/entity"
)

var (
	ErrUnsupportedOperation = errors.New("operation is not supported by this ledger")
	ErrTxNotFound           = errors.New("transaction not found")
	ErrBurnEventNotFound    = errors.New("burn event not found")
	ErrUnknownChain         = errors.New("no ledger client for chain")
	ErrAlreadyProcessed     = errors.New("transfer proof already processed on chain")
)

type LockRequest struct {
	Account    string
	Amount     entity.Amount
	Memo       string
	Credential string
}

// LockResult reports the submitted lock. Confirmed means it is already included; callers
// apply their own depth threshold.
type LockResult struct {
	TxHash    string
	Confirmed bool
}

type BurnRequest struct {
	Account     string
	Amount      entity.Amount
	Destination string
	Credential  string
}

type MintRequest struct {
	Recipient  string
	Amount     entity.Amount
	Proof      common.Hash
	Signatures [][]byte
}

// Receipt describes an included transaction. Adapters that can decode the transferred
// value fill To and Amount; others leave them empty.
type Receipt struct {
	TxHash      string
	Success     bool
	BlockNumber uint64
	To          string
	Amount      entity.Amount
}

type BurnEvent struct {
	TxHash      string
	From        string
	Amount      entity.Amount
	Destination string
}

// Client is one chain adapter. Implementations are stateless and safe for concurrent use.
type Client interface {
	Lock(ctx context.Context, req *LockRequest) (*LockResult, error)
	Release(ctx context.Context, account string, amount entity.Amount, memo string) (string, error)
	Mint(ctx context.Context, req *MintRequest) (string, error)
	Burn(ctx context.Context, req *BurnRequest) (string, error)
	// GetConfirmations and GetReceipt return ErrTxNotFound until the transaction is included.
	GetConfirmations(ctx context.Context, txHash string) (uint64, error)
	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)
	ParseBurnEvent(ctx context.Context, txHash string) (*BurnEvent, error)
	// IsProcessed reports whether the chain already executed a mint for proof.
	// Ledgers without a proof registry always report false.
	IsProcessed(ctx context.Context, proof common.Hash) (bool, error)
}

// Clients maps chain ids to their adapters.
type Clients map[string]Client

func (c Clients) Get(chain string) (Client, error) {
	client, ok := c[chain]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownChain, chain)
	}
	return client, nil
}

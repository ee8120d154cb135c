package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/xbridge/bridge-coordinator/contract/bridgeabi"
	"github.com/xbridge/bridge-coordinator/ethclient"
)

type BridgeContract struct {
	*Contract
}

// BurnedEvent is a decoded Burned log.
type BurnedEvent struct {
	From        common.Address
	Amount      *big.Int
	Destination string
}

func NewBridgeContract(client ethclient.Client, addr common.Address) *BridgeContract {
	return &BridgeContract{NewContract(client, addr, bridgeabi.BridgeABI)}
}

func (c *BridgeContract) RequiredSignatures(ctx context.Context) (uint, error) {
	res, err := c.Call(ctx, "requiredSignatures")
	if err != nil {
		return 0, fmt.Errorf("cannot obtain required signatures: %w", err)
	}
	return uint(res[0].(*big.Int).Uint64()), nil
}

// Processed reports whether the contract already executed a mint for proof.
func (c *BridgeContract) Processed(ctx context.Context, proof common.Hash) (bool, error) {
	res, err := c.Call(ctx, "processed", proof)
	if err != nil {
		return false, fmt.Errorf("cannot obtain processed flag: %w", err)
	}
	return res[0].(bool), nil
}

func (c *BridgeContract) Mint(ctx context.Context, opts *bind.TransactOpts, recipient common.Address, amount *big.Int, proof common.Hash, signatures [][]byte) (*types.Transaction, error) {
	return c.Transact(ctx, opts, "mint", recipient, amount, proof, signatures)
}

func (c *BridgeContract) Release(ctx context.Context, opts *bind.TransactOpts, recipient common.Address, amount *big.Int, memo common.Hash) (*types.Transaction, error) {
	return c.Transact(ctx, opts, "release", recipient, amount, memo)
}

// FindBurned returns the first Burned event emitted by this contract among logs.
func (c *BridgeContract) FindBurned(logs []*types.Log) (*BurnedEvent, error) {
	for _, log := range logs {
		event, data, err := c.ParseLog(log)
		if err != nil {
			return nil, err
		}
		if event != bridgeabi.Burned {
			continue
		}
		return &BurnedEvent{
			From:        data["from"].(common.Address),
			Amount:      data["amount"].(*big.Int),
			Destination: data["destination"].(string),
		}, nil
	}
	return nil, nil
}

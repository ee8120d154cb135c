package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/xbridge/bridge-coordinator/contract/abi"
	"github.com/xbridge/bridge-coordinator/ethclient"
)

var ErrNoTransactor = errors.New("contract has no transactor")

type Contract struct {
	address common.Address
	client  ethclient.Client
	abi     abi.ABI
}

func NewContract(client ethclient.Client, addr common.Address, abi abi.ABI) *Contract {
	return &Contract{addr, client, abi}
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	res, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot call %s(...): %w", method, err)
	}
	out, err := c.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s(...) result: %w", method, err)
	}
	return out, nil
}

// Transact signs and broadcasts a legacy transaction calling method. It does not wait for inclusion.
func (c *Contract) Transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	if opts == nil || opts.Signer == nil {
		return nil, ErrNoTransactor
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	nonce, err := c.client.PendingNonceAt(ctx, opts.From)
	if err != nil {
		return nil, fmt.Errorf("can't get nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get gas price: %w", err)
	}
	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: opts.From,
		To:   &c.address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("can't estimate gas for %s(...): %w", method, err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &c.address,
		Data:     data,
	})
	signed, err := opts.Signer(opts.From, tx)
	if err != nil {
		return nil, fmt.Errorf("can't sign transaction: %w", err)
	}
	if err = c.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("can't send %s(...) transaction: %w", method, err)
	}
	return signed, nil
}

func (c *Contract) ParseLog(log *types.Log) (string, map[string]interface{}, error) {
	if log.Address != c.address {
		return "", nil, nil
	}
	return c.abi.ParseLog(log)
}

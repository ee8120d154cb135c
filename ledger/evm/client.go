package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/contract"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/ethclient"
	"github.com/xbridge/bridge-coordinator/ledger"
)

var ErrInvalidAddress = errors.New("invalid evm address")

// Client mints and releases through the bridge contract of one EVM chain.
type Client struct {
	client   ethclient.Client
	contract *contract.BridgeContract
	opts     *bind.TransactOpts
}

// NewClientFromConfig dials the chain RPC. With an empty key the client is read-only.
func NewClientFromConfig(cfg *config.ChainConfig, key string) (*Client, error) {
	client, err := ethclient.NewClient(cfg.RPC.Host, cfg.RPC.Timeout, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("can't create rpc client for %s: %w", cfg.ID, err)
	}
	var pk *ecdsa.PrivateKey
	if key != "" {
		pk, err = crypto.HexToECDSA(key)
		if err != nil {
			return nil, fmt.Errorf("can't parse relayer key: %w", err)
		}
	}
	return NewClient(client, common.HexToAddress(cfg.BridgeAddress), pk)
}

func NewClient(client ethclient.Client, bridge common.Address, key *ecdsa.PrivateKey) (*Client, error) {
	c := &Client{
		client:   client,
		contract: contract.NewBridgeContract(client, bridge),
	}
	if key != nil {
		opts, err := bind.NewKeyedTransactorWithChainID(key, client.ChainID())
		if err != nil {
			return nil, fmt.Errorf("can't create keyed transactor: %w", err)
		}
		c.opts = opts
	}
	return c, nil
}

func (c *Client) Lock(context.Context, *ledger.LockRequest) (*ledger.LockResult, error) {
	return nil, fmt.Errorf("lock: %w", ledger.ErrUnsupportedOperation)
}

func (c *Client) Burn(context.Context, *ledger.BurnRequest) (string, error) {
	return "", fmt.Errorf("burn: %w", ledger.ErrUnsupportedOperation)
}

func (c *Client) Release(ctx context.Context, account string, amount entity.Amount, memo string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", fmt.Errorf("%w %q", ErrInvalidAddress, account)
	}
	tx, err := c.contract.Release(ctx, c.opts, common.HexToAddress(account), ToWei(amount), crypto.Keccak256Hash([]byte(memo)))
	if err != nil {
		return "", err
	}
	return tx.Hash().String(), nil
}

func (c *Client) Mint(ctx context.Context, req *ledger.MintRequest) (string, error) {
	if !common.IsHexAddress(req.Recipient) {
		return "", fmt.Errorf("%w %q", ErrInvalidAddress, req.Recipient)
	}
	processed, err := c.contract.Processed(ctx, req.Proof)
	if err != nil {
		return "", err
	}
	if processed {
		return "", fmt.Errorf("proof %s: %w", req.Proof, ledger.ErrAlreadyProcessed)
	}
	tx, err := c.contract.Mint(ctx, c.opts, common.HexToAddress(req.Recipient), ToWei(req.Amount), req.Proof, req.Signatures)
	if err != nil {
		return "", err
	}
	return tx.Hash().String(), nil
}

func (c *Client) IsProcessed(ctx context.Context, proof common.Hash) (bool, error) {
	processed, err := c.contract.Processed(ctx, proof)
	if err != nil {
		return false, fmt.Errorf("can't check proof %s: %w", proof, err)
	}
	return processed, nil
}

func (c *Client) receipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	receipt, err := c.client.TransactionReceiptByHash(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrTxNotFound, txHash)
	}
	if err != nil {
		return nil, fmt.Errorf("can't get receipt: %w", err)
	}
	return receipt, nil
}

func (c *Client) GetConfirmations(ctx context.Context, txHash string) (uint64, error) {
	receipt, err := c.receipt(ctx, txHash)
	if err != nil {
		return 0, err
	}
	head, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("can't get block number: %w", err)
	}
	block := receipt.BlockNumber.Uint64()
	if head < block {
		return 0, nil
	}
	return head - block + 1, nil
}

func (c *Client) GetReceipt(ctx context.Context, txHash string) (*ledger.Receipt, error) {
	receipt, err := c.receipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return &ledger.Receipt{
		TxHash:      receipt.TxHash.String(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *Client) ParseBurnEvent(ctx context.Context, txHash string) (*ledger.BurnEvent, error) {
	receipt, err := c.receipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s reverted", ledger.ErrBurnEventNotFound, txHash)
	}
	burned, err := c.contract.FindBurned(receipt.Logs)
	if err != nil {
		return nil, fmt.Errorf("can't parse burn event: %w", err)
	}
	if burned == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrBurnEventNotFound, txHash)
	}
	amount, err := FromWei(burned.Amount)
	if err != nil {
		return nil, err
	}
	return &ledger.BurnEvent{
		TxHash:      txHash,
		From:        burned.From.String(),
		Amount:      amount,
		Destination: burned.Destination,
	}, nil
}

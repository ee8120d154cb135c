package ethclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrIncompatibleChainID = errors.New("rpc url returned incompatible chainID")

type Client interface {
	ChainID() *big.Int
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceiptByHash(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionSender(tx *types.Transaction) (common.Address, error)
}

type rpcClient struct {
	chainID string
	id      *big.Int
	url     string
	timeout time.Duration
	client  *ethclient.Client
	signer  types.Signer
}

func NewClient(url string, timeout time.Duration, chainID string) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't dial JSON rpc url: %w", err)
	}
	client := &rpcClient{
		chainID: chainID,
		url:     url,
		timeout: timeout,
		client:  ethclient.NewClient(rawClient),
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), timeout)
	defer cancel2()
	rpcChainID, err := client.client.ChainID(ctx2)
	if err != nil {
		return nil, fmt.Errorf("can't get chainID: %w", err)
	}
	if rpcChainID.String() != chainID {
		return nil, fmt.Errorf("received chainID %s != expected %s: %w", rpcChainID, chainID, ErrIncompatibleChainID)
	}
	client.id = rpcChainID
	client.signer = types.NewLondonSigner(rpcChainID)
	return client, nil
}

func (c *rpcClient) ChainID() *big.Int {
	return new(big.Int).Set(c.id)
}

func (c *rpcClient) BlockNumber(ctx context.Context) (uint64, error) {
	defer ObserveDuration(c.chainID, "eth_blockNumber")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.client.BlockNumber(ctx)
	ObserveError(c.chainID, "eth_blockNumber", err)
	return n, err
}

func (c *rpcClient) TransactionReceiptByHash(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	defer ObserveDuration(c.chainID, "eth_getTransactionReceipt")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		ObserveError(c.chainID, "eth_getTransactionReceipt", nil)
		return nil, err
	}
	ObserveError(c.chainID, "eth_getTransactionReceipt", err)
	return receipt, err
}

func (c *rpcClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	defer ObserveDuration(c.chainID, "eth_call")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.client.CallContract(ctx, msg, nil)
	ObserveError(c.chainID, "eth_call", err)
	return res, err
}

func (c *rpcClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	defer ObserveDuration(c.chainID, "eth_getTransactionCount")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	nonce, err := c.client.PendingNonceAt(ctx, account)
	ObserveError(c.chainID, "eth_getTransactionCount", err)
	return nonce, err
}

func (c *rpcClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	defer ObserveDuration(c.chainID, "eth_gasPrice")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	price, err := c.client.SuggestGasPrice(ctx)
	ObserveError(c.chainID, "eth_gasPrice", err)
	return price, err
}

func (c *rpcClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	defer ObserveDuration(c.chainID, "eth_estimateGas")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gas, err := c.client.EstimateGas(ctx, msg)
	ObserveError(c.chainID, "eth_estimateGas", err)
	return gas, err
}

func (c *rpcClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	defer ObserveDuration(c.chainID, "eth_sendRawTransaction")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.client.SendTransaction(ctx, tx)
	ObserveError(c.chainID, "eth_sendRawTransaction", err)
	return err
}

func (c *rpcClient) TransactionSender(tx *types.Transaction) (common.Address, error) {
	return c.signer.Sender(tx)
}

// Package xrpl is the native-chain ledger adapter. Value is locked by paying the
// bridge door account and released by paying out of it.
package xrpl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ybbus/jsonrpc"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/ethclient"
	"github.com/xbridge/bridge-coordinator/ledger"
)

const (
	resultSuccess = "tesSUCCESS"
	resultQueued  = "terQUEUED"
	errNotFound   = "txnNotFound"
)

var ErrRejected = errors.New("transaction rejected by ledger")

type Client struct {
	chain      string
	rpc        jsonrpc.RPCClient
	door       string
	doorSecret string
}

func NewClientFromConfig(cfg *config.ChainConfig, doorSecret string) *Client {
	rpc := jsonrpc.NewClientWithOpts(cfg.RPC.Host, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: cfg.RPC.Timeout},
	})
	return NewClient(cfg.ID, rpc, cfg.BridgeAddress, doorSecret)
}

func NewClient(chain string, rpc jsonrpc.RPCClient, door, doorSecret string) *Client {
	return &Client{
		chain:      chain,
		rpc:        rpc,
		door:       door,
		doorSecret: doorSecret,
	}
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (s *rpcStatus) err() error {
	if s.Status == "error" || s.Error != "" {
		return fmt.Errorf("rippled error %s: %s", s.Error, s.ErrorMessage)
	}
	return nil
}

type submitResult struct {
	rpcStatus
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

type txResult struct {
	rpcStatus
	Hash            string `json:"hash"`
	TransactionType string `json:"TransactionType"`
	Destination     string `json:"Destination"`
	LedgerIndex     uint64 `json:"ledger_index"`
	Validated       bool   `json:"validated"`
	Meta            struct {
		TransactionResult string          `json:"TransactionResult"`
		DeliveredAmount   json.RawMessage `json:"delivered_amount"`
	} `json:"meta"`
}

// delivered returns the XRP drops a Payment actually delivered. Issued-currency
// amounts are JSON objects and report zero.
func (r *txResult) delivered() entity.Amount {
	var drops string
	if len(r.Meta.DeliveredAmount) == 0 || json.Unmarshal(r.Meta.DeliveredAmount, &drops) != nil {
		return 0
	}
	n, err := strconv.ParseInt(drops, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return entity.Amount(n)
}

type ledgerCurrentResult struct {
	rpcStatus
	LedgerCurrentIndex uint64 `json:"ledger_current_index"`
}

func (c *Client) call(ctx context.Context, out interface{}, method string, params map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer ethclient.ObserveDuration(c.chain, method)()
	err := c.rpc.CallFor(out, method, []interface{}{params})
	ethclient.ObserveError(c.chain, method, err)
	if err != nil {
		return fmt.Errorf("can't call %s: %w", method, err)
	}
	return nil
}

func (c *Client) payment(ctx context.Context, from, secret, to string, amount entity.Amount, memo string) (string, error) {
	txJSON := map[string]interface{}{
		"TransactionType": "Payment",
		"Account":         from,
		"Destination":     to,
		"Amount":          strconv.FormatInt(int64(amount), 10),
	}
	if memo != "" {
		txJSON["Memos"] = []interface{}{
			map[string]interface{}{
				"Memo": map[string]interface{}{"MemoData": hex.EncodeToString([]byte(memo))},
			},
		}
	}
	res := new(submitResult)
	err := c.call(ctx, res, "submit", map[string]interface{}{
		"tx_json": txJSON,
		"secret":  secret,
	})
	if err != nil {
		return "", err
	}
	if err = res.err(); err != nil {
		return "", err
	}
	if res.EngineResult != resultSuccess && res.EngineResult != resultQueued {
		return "", fmt.Errorf("%w: %s %s", ErrRejected, res.EngineResult, res.EngineResultMessage)
	}
	return res.TxJSON.Hash, nil
}

// Lock pays amount from the user account into the door account. The credential is the user's secret.
func (c *Client) Lock(ctx context.Context, req *ledger.LockRequest) (*ledger.LockResult, error) {
	hash, err := c.payment(ctx, req.Account, req.Credential, c.door, req.Amount, req.Memo)
	if err != nil {
		return nil, err
	}
	confirmations, err := c.GetConfirmations(ctx, hash)
	return &ledger.LockResult{TxHash: hash, Confirmed: err == nil && confirmations > 0}, nil
}

func (c *Client) Release(ctx context.Context, account string, amount entity.Amount, memo string) (string, error) {
	return c.payment(ctx, c.door, c.doorSecret, account, amount, memo)
}

func (c *Client) Mint(context.Context, *ledger.MintRequest) (string, error) {
	return "", fmt.Errorf("mint: %w", ledger.ErrUnsupportedOperation)
}

func (c *Client) Burn(context.Context, *ledger.BurnRequest) (string, error) {
	return "", fmt.Errorf("burn: %w", ledger.ErrUnsupportedOperation)
}

func (c *Client) ParseBurnEvent(context.Context, string) (*ledger.BurnEvent, error) {
	return nil, fmt.Errorf("parse burn event: %w", ledger.ErrUnsupportedOperation)
}

// validatedTx returns only transactions in a validated ledger.
func (c *Client) validatedTx(ctx context.Context, txHash string) (*txResult, error) {
	res := new(txResult)
	err := c.call(ctx, res, "tx", map[string]interface{}{"transaction": txHash})
	if err != nil {
		return nil, err
	}
	if res.Error == errNotFound || (res.rpcStatus.err() == nil && !res.Validated) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrTxNotFound, txHash)
	}
	if err = res.err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetConfirmations(ctx context.Context, txHash string) (uint64, error) {
	tx, err := c.validatedTx(ctx, txHash)
	if err != nil {
		return 0, err
	}
	current := new(ledgerCurrentResult)
	if err = c.call(ctx, current, "ledger_current", map[string]interface{}{}); err != nil {
		return 0, err
	}
	if err = current.err(); err != nil {
		return 0, err
	}
	if current.LedgerCurrentIndex <= tx.LedgerIndex {
		return 1, nil
	}
	return current.LedgerCurrentIndex - tx.LedgerIndex, nil
}

func (c *Client) GetReceipt(ctx context.Context, txHash string) (*ledger.Receipt, error) {
	tx, err := c.validatedTx(ctx, txHash)
	if err != nil {
		return nil, err
	}
	receipt := &ledger.Receipt{
		TxHash:      txHash,
		Success:     tx.Meta.TransactionResult == resultSuccess,
		BlockNumber: tx.LedgerIndex,
	}
	if tx.TransactionType == "Payment" && receipt.Success {
		receipt.To = tx.Destination
		receipt.Amount = tx.delivered()
	}
	return receipt, nil
}

// IsProcessed always reports false: the native ledger keeps no record of mint proofs.
func (c *Client) IsProcessed(context.Context, common.Hash) (bool, error) {
	return false, nil
}

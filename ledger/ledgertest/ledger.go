// Package ledgertest provides a scriptable in-memory ledger.Client.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/ledger"
)

type Transfer struct {
	TxHash  string
	Account string
	Amount  entity.Amount
	Memo    string
}

type tx struct {
	success       bool
	confirmations uint64
	included      bool
	to            string
	amount        entity.Amount
	proof         *common.Hash
}

type Ledger struct {
	mu        sync.Mutex
	name      string
	door      string
	processed map[common.Hash]bool
	seq      int
	txs      map[string]*tx
	burns    map[string]*ledger.BurnEvent
	locks    []Transfer
	mints    []*ledger.MintRequest
	releases []Transfer
	errs     map[string]error
	confs    uint64
	revert   bool
	hold     bool
}

// New returns a ledger whose transactions are included immediately with one confirmation.
func New(name string) *Ledger {
	return &Ledger{
		name:      name,
		door:      name + "-door",
		processed: make(map[common.Hash]bool),
		txs:   make(map[string]*tx),
		burns: make(map[string]*ledger.BurnEvent),
		errs:  make(map[string]error),
		confs: 1,
	}
}

// Door is the account locks pay into.
func (l *Ledger) Door() string {
	return l.door
}

// FailOn makes the named operation ("lock", "mint", "release", "processed") return err. A nil err clears it.
func (l *Ledger) FailOn(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.errs, op)
		return
	}
	l.errs[op] = err
}

// SetConfirmations sets the confirmation count of newly submitted transactions.
func (l *Ledger) SetConfirmations(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confs = n
}

// RevertSubmissions makes subsequent transactions revert on inclusion.
func (l *Ledger) RevertSubmissions(revert bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revert = revert
}

// HoldSubmissions keeps subsequent transactions out of any block until Include is called.
func (l *Ledger) HoldSubmissions(hold bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hold = hold
}

// Include puts a held transaction into a block.
func (l *Ledger) Include(txHash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.txs[txHash]; ok {
		t.included = true
	}
}

// AddTx registers an externally submitted transaction.
func (l *Ledger) AddTx(txHash string, success bool, confirmations uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[txHash] = &tx{success: success, confirmations: confirmations, included: true}
}

// AddPayment registers an externally submitted payment of amount to account.
func (l *Ledger) AddPayment(txHash, to string, amount entity.Amount, success bool, confirmations uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[txHash] = &tx{success: success, confirmations: confirmations, included: true, to: to, amount: amount}
}

// MarkProcessed records proof as consumed by a mint the ledger did not see submitted.
func (l *Ledger) MarkProcessed(proof common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed[proof] = true
}

// AddBurn registers a confirmed burn transaction carrying event.
func (l *Ledger) AddBurn(event *ledger.BurnEvent, confirmations uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *event
	l.burns[event.TxHash] = &cp
	l.txs[event.TxHash] = &tx{success: true, confirmations: confirmations, included: true}
}

func (l *Ledger) Locks() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer(nil), l.locks...)
}

func (l *Ledger) Mints() []*ledger.MintRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ledger.MintRequest(nil), l.mints...)
}

func (l *Ledger) Releases() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer(nil), l.releases...)
}

// submit must be called with the lock held.
func (l *Ledger) submit(to string, amount entity.Amount) (string, *tx) {
	l.seq++
	hash := fmt.Sprintf("%s-tx-%d", l.name, l.seq)
	t := &tx{success: !l.revert, confirmations: l.confs, included: !l.hold, to: to, amount: amount}
	l.txs[hash] = t
	return hash, t
}

// isProcessed must be called with the lock held.
func (l *Ledger) isProcessed(proof common.Hash) bool {
	if l.processed[proof] {
		return true
	}
	for _, t := range l.txs {
		if t.proof != nil && *t.proof == proof && t.included && t.success {
			return true
		}
	}
	return false
}

func (l *Ledger) Lock(_ context.Context, req *ledger.LockRequest) (*ledger.LockResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs["lock"]; err != nil {
		return nil, err
	}
	hash, t := l.submit(l.door, req.Amount)
	l.locks = append(l.locks, Transfer{TxHash: hash, Account: req.Account, Amount: req.Amount, Memo: req.Memo})
	return &ledger.LockResult{TxHash: hash, Confirmed: t.included && t.confirmations > 0}, nil
}

func (l *Ledger) Release(_ context.Context, account string, amount entity.Amount, memo string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs["release"]; err != nil {
		return "", err
	}
	hash, _ := l.submit(account, amount)
	l.releases = append(l.releases, Transfer{TxHash: hash, Account: account, Amount: amount, Memo: memo})
	return hash, nil
}

func (l *Ledger) Mint(_ context.Context, req *ledger.MintRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs["mint"]; err != nil {
		return "", err
	}
	if l.isProcessed(req.Proof) {
		return "", fmt.Errorf("proof %s: %w", req.Proof, ledger.ErrAlreadyProcessed)
	}
	cp := *req
	l.mints = append(l.mints, &cp)
	hash, t := l.submit(req.Recipient, req.Amount)
	proof := req.Proof
	t.proof = &proof
	return hash, nil
}

func (l *Ledger) Burn(context.Context, *ledger.BurnRequest) (string, error) {
	return "", fmt.Errorf("burn: %w", ledger.ErrUnsupportedOperation)
}

func (l *Ledger) GetConfirmations(_ context.Context, txHash string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txs[txHash]
	if !ok || !t.included {
		return 0, fmt.Errorf("%w: %s", ledger.ErrTxNotFound, txHash)
	}
	return t.confirmations, nil
}

func (l *Ledger) GetReceipt(_ context.Context, txHash string) (*ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txs[txHash]
	if !ok || !t.included {
		return nil, fmt.Errorf("%w: %s", ledger.ErrTxNotFound, txHash)
	}
	receipt := &ledger.Receipt{TxHash: txHash, Success: t.success, BlockNumber: 1}
	if t.success {
		receipt.To, receipt.Amount = t.to, t.amount
	}
	return receipt, nil
}

func (l *Ledger) IsProcessed(_ context.Context, proof common.Hash) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs["processed"]; err != nil {
		return false, err
	}
	return l.isProcessed(proof), nil
}

func (l *Ledger) ParseBurnEvent(_ context.Context, txHash string) (*ledger.BurnEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.burns[txHash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrBurnEventNotFound, txHash)
	}
	cp := *event
	return &cp, nil
}

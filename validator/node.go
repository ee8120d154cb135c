package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/bridge"
	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/ledger"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/repository"
	"github.com/xbridge/bridge-coordinator/utils"
)

// Validation checks. A node signs only when all of them pass.
const (
	CheckSourceTxExists     = "source_tx_exists"
	CheckSourceTxConfirmed  = "source_tx_confirmed"
	CheckAmountBounds       = "amount_bounds"
	CheckDestinationAddress = "destination_address"
	CheckNotDuplicate       = "not_duplicate"
	CheckValidityWindow     = "validity_window"
	CheckVerificationHash   = "verification_hash"
)

var signableStatuses = []entity.Status{entity.StatusLocked, entity.StatusValidating}

// ValidationFailedError is local to one validator and never changes the record.
type ValidationFailedError struct {
	TransactionID string
	ValidatorID   string
	Checks        []string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validator %s rejected transaction %s: %s", e.ValidatorID, e.TransactionID, strings.Join(e.Checks, ", "))
}

type Node struct {
	logger   logging.Logger
	cfg      *config.Config
	repo     *repository.Repo
	ledgers  ledger.Clients
	registry *Registry
	signer   *Signer
	events   events.Publisher
	signed   uint64
	failed   uint64
}

func NewNode(logger logging.Logger, cfg *config.Config, repo *repository.Repo, ledgers ledger.Clients, registry *Registry, signer *Signer, publisher events.Publisher) *Node {
	return &Node{
		logger: logger.WithFields(logrus.Fields{
			"service":   "validator",
			"validator": signer.ID(),
		}),
		cfg:      cfg,
		repo:     repo,
		ledgers:  ledgers,
		registry: registry,
		signer:   signer,
		events:   publisher,
	}
}

func (n *Node) ID() string {
	return n.signer.ID()
}

func (n *Node) Start(ctx context.Context) {
	n.logger.Info("starting validator node")
	go n.StartHeartbeats(ctx)
	go n.StartPolling(ctx)
}

func (n *Node) StartHeartbeats(ctx context.Context) {
	for {
		if err := n.SendHeartbeat(ctx); err != nil {
			n.logger.WithError(err).Error("failed to send heartbeat")
		}
		if utils.ContextSleep(ctx, n.cfg.Validator.HeartbeatInterval) == nil {
			return
		}
	}
}

func (n *Node) StartPolling(ctx context.Context) {
	for {
		if err := n.ProcessPending(ctx); err != nil {
			n.logger.WithError(err).Error("failed to process pending transactions")
		}
		if utils.ContextSleep(ctx, n.cfg.Validator.PollInterval) == nil {
			return
		}
	}
}

// SuccessRatio is the share of attempted validations this node signed.
func (n *Node) SuccessRatio() float64 {
	signed := atomic.LoadUint64(&n.signed)
	total := signed + atomic.LoadUint64(&n.failed)
	if total == 0 {
		return 1
	}
	return float64(signed) / float64(total)
}

func (n *Node) SendHeartbeat(ctx context.Context) error {
	return n.registry.Heartbeat(ctx, &entity.Heartbeat{
		ValidatorID:  n.ID(),
		At:           time.Now().UTC(),
		SignedCount:  atomic.LoadUint64(&n.signed),
		FailedCount:  atomic.LoadUint64(&n.failed),
		SuccessRatio: n.SuccessRatio(),
	})
}

// ProcessPending validates every LOCKED or VALIDATING record this node has not signed yet.
// A failure on one record does not stop the batch.
func (n *Node) ProcessPending(ctx context.Context) error {
	txs, err := n.repo.Transactions.FindUnsigned(ctx, n.ID(), signableStatuses, n.cfg.Validator.BatchSize)
	if err != nil {
		return fmt.Errorf("can't find unsigned transactions: %w", err)
	}
	for _, tx := range txs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = n.Validate(ctx, tx)
		var verr *ValidationFailedError
		if err != nil && !errors.As(err, &verr) {
			n.logger.WithError(err).WithField("tx_id", tx.ID).Error("failed to validate transaction")
		}
	}
	return nil
}

// Validate runs every check against tx and signs it when all of them pass.
func (n *Node) Validate(ctx context.Context, tx *entity.BridgeTransaction) error {
	logger := n.logger.WithField("tx_id", tx.ID)
	failures, err := n.check(ctx, tx)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		atomic.AddUint64(&n.failed, 1)
		for _, check := range failures {
			ValidationFailures.WithLabelValues(n.ID(), check).Inc()
		}
		logger.WithField("checks", failures).Warn("transaction failed validation")
		n.events.Publish(ctx, events.New(events.ValidationFailed, n.ID(), tx.ID).With("checks", failures))
		return &ValidationFailedError{TransactionID: tx.ID, ValidatorID: n.ID(), Checks: failures}
	}

	sig, err := n.signer.Sign(tx)
	if err != nil {
		return err
	}
	err = n.repo.Signatures.Append(ctx, sig)
	if errors.Is(err, entity.ErrDuplicateSignature) {
		logger.Debug("transaction already signed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("can't append signature: %w", err)
	}
	atomic.AddUint64(&n.signed, 1)
	SignedTransactions.WithLabelValues(n.ID()).Inc()
	logger.Info("signed transaction")
	n.events.Publish(ctx, events.New(events.Signed, n.ID(), tx.ID).With("message_hash", sig.MessageHash.Hex()))

	if tx.Status == entity.StatusLocked {
		ok, err := n.repo.Transactions.UpdateStatus(ctx, tx.ID, entity.StatusLocked, entity.StatusValidating, nil)
		if err != nil {
			return err
		}
		if ok {
			n.events.Publish(ctx, events.New(events.TransactionLocked, n.ID(), tx.ID).
				Transition(entity.StatusLocked, entity.StatusValidating))
		}
	}
	promoted, err := bridge.PromoteOnQuorum(ctx, n.repo, n.events, n.ID(), tx.ID, n.cfg.Bridge.RequiredValidations)
	if err != nil {
		return err
	}
	if promoted {
		logger.Info("quorum reached, transaction is ready for minting")
	}
	return nil
}

// check returns the names of failing checks. Errors are transient lookups, not verdicts.
func (n *Node) check(ctx context.Context, tx *entity.BridgeTransaction) ([]string, error) {
	var failures []string
	fail := func(check string) {
		failures = append(failures, check)
	}

	if tx.Expired(time.Now(), n.cfg.Bridge.ValidityWindow) {
		fail(CheckValidityWindow)
	}
	if tx.Amount < n.cfg.Bridge.MinAmount || tx.Amount > n.cfg.Bridge.MaxAmount || tx.Fee > tx.Amount {
		fail(CheckAmountBounds)
	}
	if ledger.ValidateAddress(tx.DestinationKind, tx.DestinationAddress) != nil {
		fail(CheckDestinationAddress)
	}
	if vh, err := entity.ComputeVerificationHash(tx); err != nil || vh != tx.VerificationHash {
		fail(CheckVerificationHash)
	}

	duplicate, err := n.isDuplicate(ctx, tx)
	if err != nil {
		return nil, err
	}
	if duplicate {
		fail(CheckNotDuplicate)
	}

	src := n.cfg.GetChainConfig(tx.SourceChain)
	client, err := n.ledgers.Get(tx.SourceChain)
	if src == nil || err != nil || tx.SourceTxHash == nil {
		fail(CheckSourceTxExists)
		return failures, nil
	}
	receipt, err := client.GetReceipt(ctx, *tx.SourceTxHash)
	if errors.Is(err, ledger.ErrTxNotFound) {
		fail(CheckSourceTxExists)
		return failures, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't get source receipt: %w", err)
	}
	if !receipt.Success {
		fail(CheckSourceTxExists)
		return failures, nil
	}
	confirmations, err := client.GetConfirmations(ctx, *tx.SourceTxHash)
	if errors.Is(err, ledger.ErrTxNotFound) {
		fail(CheckSourceTxExists)
		return failures, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't get source confirmations: %w", err)
	}
	if tx.Direction().Inbound() {
		// The lock must have paid the full amount into the door account.
		if receipt.Amount != tx.Amount || (src.BridgeAddress != "" && receipt.To != src.BridgeAddress) {
			fail(CheckSourceTxExists)
		}
	} else {
		burn, err := client.ParseBurnEvent(ctx, *tx.SourceTxHash)
		if err != nil && !errors.Is(err, ledger.ErrBurnEventNotFound) {
			return nil, fmt.Errorf("can't parse burn event: %w", err)
		}
		if err != nil || burn.Amount != tx.Amount || burn.Destination != tx.DestinationAddress {
			fail(CheckSourceTxExists)
		}
	}
	if confirmations < src.BlockConfirmations {
		fail(CheckSourceTxConfirmed)
	}
	return failures, nil
}

func (n *Node) isDuplicate(ctx context.Context, tx *entity.BridgeTransaction) (bool, error) {
	if tx.DestinationTxHash != nil || tx.Status.IsTerminal() {
		return true, nil
	}
	if tx.SourceTxHash == nil {
		return false, nil
	}
	others, err := n.repo.Transactions.FindBySourceTxHash(ctx, tx.SourceChain, *tx.SourceTxHash)
	if err != nil {
		return false, fmt.Errorf("can't find transactions by source hash: %w", err)
	}
	for _, other := range others {
		if other.ID != tx.ID && other.Status != entity.StatusFailed && other.Status != entity.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

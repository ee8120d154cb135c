package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/fee"
	"github.com/xbridge/bridge-coordinator/ledger"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/repository"
	"github.com/xbridge/bridge-coordinator/utils"
)

const (
	actorOrchestrator = "orchestrator"
	lockLease         = 10 * time.Minute
	refundLease       = time.Hour
	defaultHistory    = 100

	recordAttempts = 3
	recordBackoff  = 100 * time.Millisecond
)

type QuorumChecker interface {
	HasQuorum(ctx context.Context) (bool, error)
}

// Relayer re-drives the destination phase of a single transaction.
type Relayer interface {
	Relay(ctx context.Context, tx *entity.BridgeTransaction) error
}

type InitiateRequest struct {
	// Direction is optional. When set it must match the kinds of the two chains.
	Direction          *entity.Direction
	SourceChain        string
	DestinationChain   string
	SourceAddress      string
	DestinationAddress string
	Amount             entity.Amount
	// Credential authorizes the source-side operation: the account secret for a lock
	// on the native chain, or the burn transaction hash on an external chain.
	Credential string
}

type InitiateResult struct {
	TransactionID string        `json:"transactionId"`
	Status        entity.Status `json:"status"`
	Fee           entity.Amount `json:"fee"`
}

type Orchestrator struct {
	logger  logging.Logger
	cfg     *config.BridgeConfig
	chains  map[string]*config.ChainConfig
	repo    *repository.Repo
	fees    *fee.Calculator
	ledgers ledger.Clients
	quorum  QuorumChecker
	relayer Relayer
	events  events.Publisher
}

func NewOrchestrator(logger logging.Logger, cfg *config.Config, repo *repository.Repo, fees *fee.Calculator, ledgers ledger.Clients, quorum QuorumChecker, relayer Relayer, publisher events.Publisher) *Orchestrator {
	return &Orchestrator{
		logger:  logger.WithField("service", "orchestrator"),
		cfg:     cfg.Bridge,
		chains:  cfg.Chains,
		repo:    repo,
		fees:    fees,
		ledgers: ledgers,
		quorum:  quorum,
		relayer: relayer,
		events:  publisher,
	}
}

func (o *Orchestrator) validate(req *InitiateRequest) (src, dst *config.ChainConfig, err error) {
	src, ok := o.chains[req.SourceChain]
	if !ok {
		return nil, nil, invalid("source_chain", "unknown chain %q", req.SourceChain)
	}
	dst, ok = o.chains[req.DestinationChain]
	if !ok {
		return nil, nil, invalid("destination_chain", "unknown chain %q", req.DestinationChain)
	}
	if src.ID == dst.ID {
		return nil, nil, invalid("destination_chain", "source and destination chains are the same")
	}
	dir := entity.NewDirection(src.Kind, dst.Kind)
	if err = dir.Validate(); err != nil {
		return nil, nil, invalid("direction", "%s", err)
	}
	if req.Direction != nil && *req.Direction != dir {
		return nil, nil, invalid("direction", "%s does not match chains %s -> %s", req.Direction, src.ID, dst.ID)
	}
	if req.Amount <= 0 {
		return nil, nil, invalid("amount", "must be positive")
	}
	if req.Amount < o.cfg.MinAmount || req.Amount > o.cfg.MaxAmount {
		return nil, nil, invalid("amount", "%s is outside [%s, %s]", req.Amount, o.cfg.MinAmount, o.cfg.MaxAmount)
	}
	if err = ledger.ValidateAddress(dst.Kind, req.DestinationAddress); err != nil {
		return nil, nil, invalid("destination_address", "%s", err)
	}
	if err = ledger.ValidateAddress(src.Kind, req.SourceAddress); err != nil {
		return nil, nil, invalid("source_address", "%s", err)
	}
	if req.Credential == "" {
		return nil, nil, invalid("credential", "must not be empty")
	}
	return src, dst, nil
}

// Initiate validates the request, persists an INITIATED record and performs the
// source-side operation. Validation and quorum errors leave no state behind.
func (o *Orchestrator) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	src, dst, err := o.validate(req)
	if err != nil {
		return nil, err
	}
	txFee, err := o.fees.Calculate(dst.ID, req.Amount)
	if err != nil {
		return nil, invalid("destination_chain", "%s", err)
	}
	if txFee > req.Amount {
		return nil, invalid("amount", "%s does not cover fee %s", req.Amount, txFee)
	}
	srcClient, err := o.ledgers.Get(src.ID)
	if err != nil {
		return nil, invalid("source_chain", "%s", err)
	}
	if !entity.NewDirection(src.Kind, dst.Kind).Inbound() {
		claimed, err := o.repo.Transactions.FindBySourceTxHash(ctx, src.ID, req.Credential)
		if err != nil {
			return nil, err
		}
		for _, tx := range claimed {
			if tx.Status != entity.StatusFailed && tx.Status != entity.StatusCancelled {
				return nil, invalid("credential", "burn %s is already claimed by transaction %s", req.Credential, tx.ID)
			}
		}
	}
	ok, err := o.quorum.HasQuorum(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't check validator quorum: %w", err)
	}
	if !ok {
		return nil, ErrInsufficientValidators
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	lease := now.Add(lockLease)
	tx := &entity.BridgeTransaction{
		ID:                 uuid.NewString(),
		SourceKind:         src.Kind,
		DestinationKind:    dst.Kind,
		SourceChain:        src.ID,
		DestinationChain:   dst.ID,
		SourceAddress:      req.SourceAddress,
		DestinationAddress: req.DestinationAddress,
		Amount:             req.Amount,
		Fee:                txFee,
		Status:             entity.StatusInitiated,
		CreatedAt:          now,
		ClaimedUntil:       &lease,
	}
	if tx.VerificationHash, err = entity.ComputeVerificationHash(tx); err != nil {
		return nil, err
	}
	if err = o.repo.Transactions.Create(ctx, tx); err != nil {
		return nil, err
	}
	logger := o.logger.WithFields(logrus.Fields{
		"tx_id":     tx.ID,
		"direction": tx.Direction().String(),
		"amount":    tx.Amount.String(),
		"fee":       tx.Fee.String(),
	})
	logger.Info("bridge transaction initiated")
	o.events.Publish(ctx, events.New(events.TransactionInitiated, actorOrchestrator, tx.ID).
		With("source_chain", tx.SourceChain).
		With("destination_chain", tx.DestinationChain).
		With("amount", tx.Amount.String()).
		With("fee", tx.Fee.String()))

	var (
		sourceHash string
		confirmed  bool
	)
	if tx.Direction().Inbound() {
		sourceHash, confirmed, err = o.lock(ctx, srcClient, src, tx, req.Credential)
	} else {
		sourceHash, confirmed, err = o.verifyBurn(ctx, srcClient, src, tx, req.Credential)
	}
	if err != nil {
		logger.WithError(err).Error("source operation failed")
		msg := fmt.Sprintf("lock failed: %s", err)
		if _, uerr := o.repo.Transactions.UpdateStatus(ctx, tx.ID, entity.StatusInitiated, entity.StatusFailed, &entity.StatusUpdate{ErrorMessage: &msg}); uerr != nil {
			logger.WithError(uerr).Error("failed to record lock failure")
		} else if uerr = o.repo.Transactions.Unclaim(ctx, tx.ID); uerr != nil {
			logger.WithError(uerr).Warn("failed to release initiate lease")
		}
		o.events.Publish(ctx, events.New(events.LockFailed, actorOrchestrator, tx.ID).
			Transition(entity.StatusInitiated, entity.StatusFailed).
			With("error", err.Error()))
		return nil, &LockFailedError{TransactionID: tx.ID, Err: err}
	}

	next, event := entity.StatusLocked, events.TransactionLocked
	if confirmed {
		next = entity.StatusValidating
	}
	ok, err = o.recordSource(ctx, tx, next, sourceHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.WithField("source_tx_hash", sourceHash).Error("record changed while the source operation was in flight")
		return nil, fmt.Errorf("transaction %s: %w", tx.ID, ErrConcurrentUpdate)
	}
	if err = o.repo.Transactions.Unclaim(ctx, tx.ID); err != nil {
		logger.WithError(err).Warn("failed to release initiate lease")
	}
	o.events.Publish(ctx, events.New(event, actorOrchestrator, tx.ID).
		Transition(entity.StatusInitiated, next).
		With("source_tx_hash", sourceHash))
	logger.WithFields(logrus.Fields{
		"source_tx_hash": sourceHash,
		"status":         next,
	}).Info("source operation accepted")

	return &InitiateResult{
		TransactionID: tx.ID,
		Status:        next,
		Fee:           txFee,
	}, nil
}

// recordSource stores the accepted source hash, retrying transient repository errors.
// Once the source funds moved the hash must not be lost: if the transition keeps failing
// the record is failed with the hash attached so it stays refundable.
func (o *Orchestrator) recordSource(ctx context.Context, tx *entity.BridgeTransaction, next entity.Status, sourceHash string) (bool, error) {
	logger := o.logger.WithFields(logrus.Fields{
		"tx_id":          tx.ID,
		"source_tx_hash": sourceHash,
	})
	var err error
	backoff := recordBackoff
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		var ok bool
		ok, err = o.repo.Transactions.UpdateStatus(ctx, tx.ID, entity.StatusInitiated, next, &entity.StatusUpdate{SourceTxHash: &sourceHash})
		if err == nil {
			return ok, nil
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("failed to record source transaction")
		if attempt == recordAttempts || utils.ContextSleep(ctx, backoff) == nil {
			break
		}
		backoff *= 2
	}

	msg := fmt.Sprintf("source transaction %s accepted but not recorded: %s", sourceHash, err)
	upd := &entity.StatusUpdate{SourceTxHash: &sourceHash, ErrorMessage: &msg}
	if _, ferr := o.repo.Transactions.UpdateStatus(context.WithoutCancel(ctx), tx.ID, entity.StatusInitiated, entity.StatusFailed, upd); ferr != nil {
		logger.WithError(ferr).Error("source funds moved but the record could not be updated, manual refund required")
	} else {
		logger.WithError(err).Error("source transaction recorded on a failed record, refund required")
	}
	o.events.Publish(ctx, events.New(events.SourceUnrecorded, actorOrchestrator, tx.ID).
		Transition(entity.StatusInitiated, entity.StatusFailed).
		With("source_tx_hash", sourceHash).
		With("error", err.Error()))
	return false, fmt.Errorf("can't record source transaction %s: %w", sourceHash, err)
}

// lock pays into the door account. The lock counts as confirmed once it reaches the
// chain's block_confirmations, the same threshold a burn is held to.
func (o *Orchestrator) lock(ctx context.Context, client ledger.Client, src *config.ChainConfig, tx *entity.BridgeTransaction, credential string) (string, bool, error) {
	res, err := client.Lock(ctx, &ledger.LockRequest{
		Account:    tx.SourceAddress,
		Amount:     tx.Amount,
		Memo:       tx.ID,
		Credential: credential,
	})
	if err != nil {
		return "", false, err
	}
	if !res.Confirmed {
		return res.TxHash, false, nil
	}
	confirmations, err := client.GetConfirmations(ctx, res.TxHash)
	if err != nil {
		// The funds moved. Validators confirm the lock later.
		o.logger.WithError(err).WithField("tx_id", tx.ID).Warn("can't read lock confirmations")
		return res.TxHash, false, nil
	}
	return res.TxHash, confirmations >= src.BlockConfirmations, nil
}

// verifyBurn checks that the user's burn on the external source chain matches the request.
func (o *Orchestrator) verifyBurn(ctx context.Context, client ledger.Client, src *config.ChainConfig, tx *entity.BridgeTransaction, burnHash string) (string, bool, error) {
	burn, err := client.ParseBurnEvent(ctx, burnHash)
	if err != nil {
		return "", false, err
	}
	if burn.Amount != tx.Amount {
		return "", false, fmt.Errorf("burned amount %s does not match requested %s", burn.Amount, tx.Amount)
	}
	if burn.Destination != tx.DestinationAddress {
		return "", false, fmt.Errorf("burn destination %q does not match requested %q", burn.Destination, tx.DestinationAddress)
	}
	confirmations, err := client.GetConfirmations(ctx, burnHash)
	if err != nil {
		return "", false, err
	}
	return burnHash, confirmations >= src.BlockConfirmations, nil
}

// GetStatus returns the stored record with its signatures attached.
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (*entity.BridgeTransaction, error) {
	tx, err := o.repo.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't get transaction %s: %w", id, err)
	}
	tx.Signatures, err = o.repo.Signatures.FindByTransactionID(ctx, id)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (o *Orchestrator) GetHistory(ctx context.Context, address string, filter *entity.TransactionFilter) ([]*entity.BridgeTransaction, error) {
	if filter == nil {
		filter = new(entity.TransactionFilter)
	}
	if filter.Limit == 0 {
		filter.Limit = defaultHistory
	}
	return o.repo.Transactions.FindByAddress(ctx, address, filter)
}

func (o *Orchestrator) GetStatistics(ctx context.Context) (*entity.Statistics, error) {
	return o.repo.Transactions.Statistics(ctx, nil)
}

// Retry re-drives a VALIDATING or MINTING transaction below the retry ceiling.
func (o *Orchestrator) Retry(ctx context.Context, id, actor string) error {
	tx, err := o.repo.Transactions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("can't get transaction %s: %w", id, err)
	}
	if tx.Status != entity.StatusValidating && tx.Status != entity.StatusMinting {
		return fmt.Errorf("transaction %s in status %s: %w", id, tx.Status, ErrNotRetryable)
	}
	if tx.Expired(time.Now(), o.cfg.ValidityWindow) {
		return fmt.Errorf("transaction %s: %w", id, ErrExpired)
	}
	ok, err := o.repo.Transactions.IncrementRetryCount(ctx, id, tx.Status, o.cfg.MaxRetries)
	if err != nil {
		return err
	}
	if !ok {
		current, err := o.repo.Transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != tx.Status {
			return fmt.Errorf("transaction %s: %w", id, ErrConcurrentUpdate)
		}
		return fmt.Errorf("transaction %s after %d retries: %w", id, current.RetryCount, ErrRetryLimitReached)
	}
	tx.RetryCount++
	o.logger.WithFields(logrus.Fields{
		"tx_id":       id,
		"status":      tx.Status,
		"retry_count": tx.RetryCount,
		"actor":       actor,
	}).Info("retrying transaction")
	o.events.Publish(ctx, events.New(events.TransactionRetried, actor, id).
		With("status", tx.Status).
		With("retry_count", tx.RetryCount))
	return o.relayer.Relay(ctx, tx)
}

// Refund releases the full amount back to the sender of an inbound transfer that
// failed after its lock succeeded.
func (o *Orchestrator) Refund(ctx context.Context, id, actor string) error {
	tx, err := o.repo.Transactions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("can't get transaction %s: %w", id, err)
	}
	if !tx.Refundable() {
		return fmt.Errorf("transaction %s in status %s: %w", id, tx.Status, ErrNotRefundable)
	}
	client, err := o.ledgers.Get(tx.SourceChain)
	if err != nil {
		return err
	}
	ok, err := o.repo.Transactions.Claim(ctx, id, entity.StatusFailed, time.Now().Add(refundLease))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrClaimed)
	}
	logger := o.logger.WithFields(logrus.Fields{
		"tx_id": id,
		"actor": actor,
	})
	hash, err := client.Release(ctx, tx.SourceAddress, tx.Amount, "refund:"+tx.ID)
	if err != nil {
		logger.WithError(err).Error("refund release failed")
		if uerr := o.repo.Transactions.Unclaim(ctx, id); uerr != nil {
			logger.WithError(uerr).Error("failed to release refund lease")
		}
		return fmt.Errorf("can't release refund for transaction %s: %w", id, err)
	}
	ok, err = o.repo.Transactions.UpdateStatus(ctx, id, entity.StatusFailed, entity.StatusRefunded, nil)
	if err != nil {
		return err
	}
	if !ok {
		logger.WithField("release_tx_hash", hash).Error("refund released but record changed concurrently")
		return fmt.Errorf("transaction %s: %w", id, ErrConcurrentUpdate)
	}
	logger.WithField("release_tx_hash", hash).Info("transaction refunded")
	o.events.Publish(ctx, events.New(events.TransactionRefunded, actor, id).
		Transition(entity.StatusFailed, entity.StatusRefunded).
		With("release_tx_hash", hash).
		With("amount", tx.Amount.String()))
	return nil
}

// Cancel closes a record stranded in INITIATED once no initiate call holds it.
func (o *Orchestrator) Cancel(ctx context.Context, id, actor string) error {
	ok, err := o.repo.Transactions.Claim(ctx, id, entity.StatusInitiated, time.Now().Add(time.Minute))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotCancellable)
	}
	ok, err = o.repo.Transactions.UpdateStatus(ctx, id, entity.StatusInitiated, entity.StatusCancelled, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotCancellable)
	}
	o.events.Publish(ctx, events.New(events.TransactionCancelled, actor, id).
		Transition(entity.StatusInitiated, entity.StatusCancelled))
	return nil
}

// IsUserError reports whether err was caused by the request rather than the system.
func IsUserError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) || errors.Is(err, ErrInsufficientValidators)
}

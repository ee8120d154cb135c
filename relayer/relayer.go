package relayer

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/xbridge/bridge-coordinator/validator"
)

const (
	actorRelayer = "relayer"

	reasonInvalidSignature = "invalid signature"
	reasonMintFailed       = "mint failed"
	reasonReverted         = "destination transaction reverted"
)

var ErrInvalidSignatures = errors.New("not enough valid validator signatures")

// MintFailedError means the destination call failed after the source funds were secured.
// Inbound transfers that end this way are refundable.
type MintFailedError struct {
	TransactionID string
	Reason        string
	Err           error
}

func (e *MintFailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s for transaction %s", e.Reason, e.TransactionID)
	}
	return fmt.Sprintf("%s for transaction %s: %s", e.Reason, e.TransactionID, e.Err)
}

func (e *MintFailedError) Unwrap() error {
	return e.Err
}

type Stats struct {
	Processed uint64 `json:"processed"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
}

type Relayer struct {
	logger    logging.Logger
	cfg       *config.Config
	repo      *repository.Repo
	ledgers   ledger.Clients
	registry  *validator.Registry
	events    events.Publisher
	processed uint64
	succeeded uint64
	failed    uint64
}

func NewRelayer(logger logging.Logger, cfg *config.Config, repo *repository.Repo, ledgers ledger.Clients, registry *validator.Registry, publisher events.Publisher) *Relayer {
	return &Relayer{
		logger:   logger.WithField("service", "relayer"),
		cfg:      cfg,
		repo:     repo,
		ledgers:  ledgers,
		registry: registry,
		events:   publisher,
	}
}

func (r *Relayer) Stats() Stats {
	return Stats{
		Processed: atomic.LoadUint64(&r.processed),
		Succeeded: atomic.LoadUint64(&r.succeeded),
		Failed:    atomic.LoadUint64(&r.failed),
	}
}

func (r *Relayer) Start(ctx context.Context) {
	r.logger.Info("starting relayer")
	for {
		if err := r.ProcessPending(ctx); err != nil {
			r.logger.WithError(err).Error("failed to process pending transactions")
		}
		if utils.ContextSleep(ctx, r.cfg.Relayer.PollInterval) == nil {
			return
		}
	}
}

// ProcessPending relays records that reached quorum and re-verifies in-flight submissions.
func (r *Relayer) ProcessPending(ctx context.Context) error {
	txs, err := r.repo.Transactions.FindPending(ctx, []entity.Status{entity.StatusValidating, entity.StatusMinting}, nil, r.cfg.Relayer.BatchSize)
	if err != nil {
		return fmt.Errorf("can't find pending transactions: %w", err)
	}
	for _, tx := range txs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = r.Relay(ctx, tx); err != nil {
			r.logger.WithError(err).WithField("tx_id", tx.ID).Error("failed to relay transaction")
		}
	}
	return nil
}

// Relay drives a single record through the destination phase. A record that already
// carries a destination hash is only re-verified, never resubmitted.
func (r *Relayer) Relay(ctx context.Context, tx *entity.BridgeTransaction) error {
	if tx.Status == entity.StatusValidating {
		promoted, err := bridge.PromoteOnQuorum(ctx, r.repo, r.events, actorRelayer, tx.ID, r.cfg.Bridge.RequiredValidations)
		if err != nil {
			return err
		}
		if !promoted {
			current, err := r.repo.Transactions.GetByID(ctx, tx.ID)
			if err != nil {
				return err
			}
			if current.Status != entity.StatusMinting {
				return nil
			}
			tx = current
		} else {
			tx.Status = entity.StatusMinting
		}
	}
	if tx.Status != entity.StatusMinting {
		return nil
	}
	if tx.DestinationTxHash != nil {
		return r.confirm(ctx, tx, *tx.DestinationTxHash)
	}
	return r.submit(ctx, tx)
}

func (r *Relayer) submit(ctx context.Context, tx *entity.BridgeTransaction) error {
	logger := r.logger.WithFields(logrus.Fields{
		"tx_id":             tx.ID,
		"destination_chain": tx.DestinationChain,
	})
	if tx.Expired(time.Now(), r.cfg.Bridge.ValidityWindow) {
		logger.Warn("transaction expired before submission")
		return fmt.Errorf("transaction %s: %w", tx.ID, bridge.ErrExpired)
	}
	client, err := r.ledgers.Get(tx.DestinationChain)
	if err != nil {
		return err
	}
	signatures, err := r.validSignatures(ctx, tx)
	if err != nil {
		return err
	}
	if uint(len(signatures)) < r.cfg.Bridge.RequiredValidations {
		logger.WithField("valid_signatures", len(signatures)).Error("refusing to submit without a valid quorum")
		return r.fail(ctx, tx, reasonInvalidSignature, ErrInvalidSignatures, nil)
	}

	lease := time.Now().Add(r.cfg.Relayer.ConfirmationTimeout + r.cfg.Relayer.PollInterval)
	ok, err := r.repo.Transactions.Claim(ctx, tx.ID, entity.StatusMinting, lease)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("transaction is claimed by another relayer")
		return nil
	}

	atomic.AddUint64(&r.processed, 1)
	ProcessedTransactions.WithLabelValues(tx.DestinationChain).Inc()
	var hash string
	if tx.Direction().Inbound() {
		hash, err = client.Mint(ctx, &ledger.MintRequest{
			Recipient:  tx.DestinationAddress,
			Amount:     tx.NetAmount(),
			Proof:      tx.VerificationHash,
			Signatures: signatures,
		})
	} else {
		hash, err = client.Release(ctx, tx.DestinationAddress, tx.NetAmount(), tx.ID)
	}
	switch {
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		logger.Warn("transfer proof was already processed on chain, completing without a hash")
		return r.complete(ctx, tx, "", false)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The submission may have reached the chain. The lease blocks a resubmission until it expires.
		logger.WithError(err).Error("submission outcome is unknown")
		return err
	case err != nil:
		logger.WithError(err).Error("destination submission failed")
		return r.fail(ctx, tx, reasonMintFailed, err, nil)
	}

	ok, err = r.repo.Transactions.SetDestinationTxHash(ctx, tx.ID, hash)
	if err != nil {
		return err
	}
	if !ok {
		logger.WithField("destination_tx_hash", hash).Error("destination hash was already recorded")
	}
	tx.DestinationTxHash = &hash
	logger.WithField("destination_tx_hash", hash).Info("submitted destination transaction")
	r.events.Publish(ctx, events.New(events.MintSubmitted, actorRelayer, tx.ID).
		With("destination_tx_hash", hash).
		With("amount", tx.NetAmount().String()))
	return r.confirm(ctx, tx, hash)
}

// validSignatures keeps signatures made over the current record by active registry members.
func (r *Relayer) validSignatures(ctx context.Context, tx *entity.BridgeTransaction) ([][]byte, error) {
	vh, err := entity.ComputeVerificationHash(tx)
	if err != nil || vh != tx.VerificationHash {
		return nil, nil
	}
	active, err := r.registry.ActiveIDs(ctx)
	if err != nil {
		return nil, err
	}
	sigs, err := r.repo.Signatures.FindByTransactionID(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("can't find signatures: %w", err)
	}
	res := make([][]byte, 0, len(sigs))
	for _, sig := range sigs {
		if !active[sig.ValidatorID] {
			continue
		}
		if err = validator.VerifySignature(tx, sig); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"tx_id":     tx.ID,
				"validator": sig.ValidatorID,
			}).Warn("discarding invalid signature")
			continue
		}
		res = append(res, sig.Signature)
	}
	return res, nil
}

// confirm waits, bounded, for the destination transaction to reach the required depth.
// On timeout the record stays MINTING and is re-verified on the next pass.
func (r *Relayer) confirm(ctx context.Context, tx *entity.BridgeTransaction, hash string) error {
	logger := r.logger.WithFields(logrus.Fields{
		"tx_id":               tx.ID,
		"destination_tx_hash": hash,
	})
	client, err := r.ledgers.Get(tx.DestinationChain)
	if err != nil {
		return err
	}
	required := uint64(1)
	if dst := r.cfg.GetChainConfig(tx.DestinationChain); dst != nil {
		required = dst.BlockConfirmations
	}
	err = utils.PollUntil(ctx, r.cfg.Relayer.ConfirmationPollInterval, r.cfg.Relayer.ConfirmationTimeout, func(ctx context.Context) (bool, error) {
		n, err := client.GetConfirmations(ctx, hash)
		if errors.Is(err, ledger.ErrTxNotFound) {
			return false, nil
		}
		return n >= required, err
	})
	if errors.Is(err, utils.ErrPollTimeout) {
		logger.Warn("destination transaction is not confirmed yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("can't confirm destination transaction: %w", err)
	}

	receipt, err := client.GetReceipt(ctx, hash)
	if err != nil {
		return fmt.Errorf("can't get destination receipt: %w", err)
	}
	if !receipt.Success {
		if tx.Direction().Inbound() {
			// A resubmission reverts when an earlier mint for the same proof landed first.
			processed, err := client.IsProcessed(ctx, tx.VerificationHash)
			if err != nil {
				return fmt.Errorf("can't check mint proof after revert: %w", err)
			}
			if processed {
				logger.Warn("destination transaction reverted but the proof was already processed, completing without a hash")
				return r.complete(ctx, tx, "", true)
			}
		}
		logger.Error("destination transaction reverted")
		return r.fail(ctx, tx, reasonReverted, nil, &hash)
	}
	return r.complete(ctx, tx, hash, false)
}

// complete marks the record COMPLETED. clearHash drops a recorded destination hash that
// does not belong to the transaction that executed the transfer.
func (r *Relayer) complete(ctx context.Context, tx *entity.BridgeTransaction, hash string, clearHash bool) error {
	now := time.Now().UTC()
	upd := &entity.StatusUpdate{CompletedAt: &now, ClearDestinationTxHash: clearHash}
	ok, err := r.repo.Transactions.UpdateStatus(ctx, tx.ID, entity.StatusMinting, entity.StatusCompleted, upd)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	atomic.AddUint64(&r.succeeded, 1)
	SucceededTransactions.WithLabelValues(tx.DestinationChain).Inc()
	r.logger.WithFields(logrus.Fields{
		"tx_id":               tx.ID,
		"destination_tx_hash": hash,
	}).Info("bridge transaction completed")
	r.events.Publish(ctx, events.New(events.BridgeCompleted, actorRelayer, tx.ID).
		Transition(entity.StatusMinting, entity.StatusCompleted).
		With("destination_tx_hash", hash))
	return nil
}

// fail marks the record FAILED. A reverted submission drops its destination hash so the
// transfer becomes refundable.
func (r *Relayer) fail(ctx context.Context, tx *entity.BridgeTransaction, reason string, cause error, reverted *string) error {
	msg := reason
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", reason, cause)
	}
	upd := &entity.StatusUpdate{ErrorMessage: &msg, ClearDestinationTxHash: reverted != nil}
	ok, err := r.repo.Transactions.UpdateStatus(ctx, tx.ID, entity.StatusMinting, entity.StatusFailed, upd)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	atomic.AddUint64(&r.failed, 1)
	FailedTransactions.WithLabelValues(tx.DestinationChain, reason).Inc()
	event := events.New(events.MintFailed, actorRelayer, tx.ID).
		Transition(entity.StatusMinting, entity.StatusFailed).
		With("reason", reason)
	if reverted != nil {
		event.With("destination_tx_hash", *reverted)
	}
	r.events.Publish(ctx, event)
	return &MintFailedError{TransactionID: tx.ID, Reason: reason, Err: cause}
}

package validator_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/ledger"
	"github.com/xbridge/bridge-coordinator/ledger/ledgertest"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/repository"
	"github.com/xbridge/bridge-coordinator/repository/memory"
	"github.com/xbridge/bridge-coordinator/validator"
)

const (
	xrplAddr = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	evmAddr  = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	door     = "rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY"
)

const testCfg = `
chains:
  xrpl:
    kind: native
    rpc:
      host: http://localhost:5005
    bridge_address: rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY
    block_confirmations: 2
  ethereum:
    kind: evm
    rpc:
      host: http://localhost:8545
    fee:
      base: 10
      percentage_bps: 10
      minimum: 10
      maximum: 5000
bridge:
  required_validations: 3
  min_amount: 100
  max_amount: 1000000
registry:
  liveness_window: 1m
`

type fixture struct {
	cfg      *config.Config
	repo     *repository.Repo
	xrpl     *ledgertest.Ledger
	events   *events.Recorder
	registry *validator.Registry
	ledgers  ledger.Clients
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.ReadConfig([]byte(testCfg))
	require.NoError(t, err)
	f := &fixture{
		cfg:    cfg,
		repo:   memory.NewRepo(),
		xrpl:   ledgertest.New("xrpl"),
		events: new(events.Recorder),
	}
	f.ledgers = ledger.Clients{"xrpl": f.xrpl, "ethereum": ledgertest.New("ethereum")}
	f.registry = validator.NewRegistry(logging.NewNop(), cfg, f.repo, f.events)
	return f
}

func (f *fixture) newNode(t *testing.T) *validator.Node {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := validator.NewSigner(key)
	require.NoError(t, f.registry.Add(context.Background(), signer.ID(), "test"))
	return validator.NewNode(logging.NewNop(), f.cfg, f.repo, f.ledgers, f.registry, signer, f.events)
}

func (f *fixture) newTx(t *testing.T, id string, status entity.Status, createdAt time.Time, confirmations uint64) *entity.BridgeTransaction {
	t.Helper()
	hash := id + "-lock"
	f.xrpl.AddPayment(hash, door, entity.NewAmount(1000), true, confirmations)
	tx := &entity.BridgeTransaction{
		ID:                 id,
		SourceKind:         entity.ChainKindNative,
		DestinationKind:    entity.ChainKindEVM,
		SourceChain:        "xrpl",
		DestinationChain:   "ethereum",
		SourceAddress:      xrplAddr,
		DestinationAddress: evmAddr,
		Amount:             entity.NewAmount(1000),
		Fee:                entity.NewAmount(11),
		Status:             status,
		SourceTxHash:       &hash,
		CreatedAt:          createdAt.UTC().Truncate(time.Microsecond),
	}
	var err error
	tx.VerificationHash, err = entity.ComputeVerificationHash(tx)
	require.NoError(t, err)
	require.NoError(t, f.repo.Transactions.Create(context.Background(), tx))
	return tx
}

func TestNode_QuorumPromotesToMinting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	tx := f.newTx(t, "tx-1", entity.StatusValidating, time.Now(), 2)

	nodes := []*validator.Node{f.newNode(t), f.newNode(t), f.newNode(t)}
	for i, node := range nodes {
		require.NoError(t, node.Validate(ctx, tx))
		got, err := f.repo.Transactions.GetByID(ctx, tx.ID)
		require.NoError(t, err)
		if i < 2 {
			require.Equal(t, entity.StatusValidating, got.Status)
		} else {
			require.Equal(t, entity.StatusMinting, got.Status)
		}
	}

	sigs, err := f.repo.Signatures.FindByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, sigs, 3)
	for _, sig := range sigs {
		require.NoError(t, validator.VerifySignature(tx, sig))
	}
	require.Equal(t, 3, f.events.Count(events.Signed))
	require.Equal(t, 1, f.events.Count(events.QuorumReached))
}

func TestNode_FailedLockNeverReachesQuorum(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	tx := f.newTx(t, "tx-failed-lock", entity.StatusValidating, time.Now(), 5)
	f.xrpl.AddTx(*tx.SourceTxHash, false, 5)

	for _, node := range []*validator.Node{f.newNode(t), f.newNode(t), f.newNode(t)} {
		var verr *validator.ValidationFailedError
		require.ErrorAs(t, node.Validate(ctx, tx), &verr)
		require.Equal(t, []string{validator.CheckSourceTxExists}, verr.Checks)
	}

	got, err := f.repo.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusValidating, got.Status)
	count, err := f.repo.Signatures.CountByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Zero(t, f.events.Count(events.QuorumReached))
}

func TestNode_DuplicateSignIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	tx := f.newTx(t, "tx-1", entity.StatusValidating, time.Now(), 2)
	node := f.newNode(t)

	require.NoError(t, node.Validate(ctx, tx))
	require.NoError(t, node.Validate(ctx, tx))

	count, err := f.repo.Signatures.CountByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, uint(1), count)
	require.Equal(t, 1, f.events.Count(events.Signed))
}

func TestNode_FailedChecks(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name   string
		setup  func(t *testing.T, f *fixture) *entity.BridgeTransaction
		checks []string
	}{
		{
			name: "expired",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				return f.newTx(t, "tx-expired", entity.StatusValidating, time.Now().Add(-25*time.Hour), 2)
			},
			checks: []string{validator.CheckValidityWindow},
		},
		{
			name: "unconfirmed",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				return f.newTx(t, "tx-unconfirmed", entity.StatusLocked, time.Now(), 1)
			},
			checks: []string{validator.CheckSourceTxConfirmed},
		},
		{
			name: "missing source",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				tx := f.newTx(t, "tx-missing", entity.StatusValidating, time.Now(), 2)
				missing := "unknown-hash"
				tx.SourceTxHash = &missing
				return tx
			},
			checks: []string{validator.CheckSourceTxExists},
		},
		{
			name: "failed lock",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				tx := f.newTx(t, "tx-failed-lock", entity.StatusValidating, time.Now(), 5)
				f.xrpl.AddTx(*tx.SourceTxHash, false, 5)
				return tx
			},
			checks: []string{validator.CheckSourceTxExists},
		},
		{
			name: "lock paid elsewhere",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				tx := f.newTx(t, "tx-wrong-door", entity.StatusValidating, time.Now(), 5)
				f.xrpl.AddPayment(*tx.SourceTxHash, xrplAddr, tx.Amount, true, 5)
				return tx
			},
			checks: []string{validator.CheckSourceTxExists},
		},
		{
			name: "lock short of the amount",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				tx := f.newTx(t, "tx-short-lock", entity.StatusValidating, time.Now(), 5)
				f.xrpl.AddPayment(*tx.SourceTxHash, door, entity.NewAmount(999), true, 5)
				return tx
			},
			checks: []string{validator.CheckSourceTxExists},
		},
		{
			name: "tampered amount",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				tx := f.newTx(t, "tx-tampered", entity.StatusValidating, time.Now(), 2)
				tx.Amount = entity.NewAmount(100000)
				return tx
			},
			checks: []string{validator.CheckVerificationHash, validator.CheckSourceTxExists},
		},
		{
			name: "bad destination and amount",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				tx := f.newTx(t, "tx-bad", entity.StatusValidating, time.Now(), 2)
				tx.DestinationAddress = xrplAddr
				tx.Amount = entity.NewAmount(10)
				return tx
			},
			checks: []string{validator.CheckAmountBounds, validator.CheckDestinationAddress, validator.CheckVerificationHash, validator.CheckSourceTxExists},
		},
		{
			name: "duplicate source",
			setup: func(t *testing.T, f *fixture) *entity.BridgeTransaction {
				first := f.newTx(t, "tx-first", entity.StatusValidating, time.Now(), 2)
				second := *first
				second.ID = "tx-second"
				second.VerificationHash, _ = entity.ComputeVerificationHash(&second)
				require.NoError(t, f.repo.Transactions.Create(context.Background(), &second))
				return &second
			},
			checks: []string{validator.CheckNotDuplicate},
		},
	} {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			f := newFixture(t)
			tx := test.setup(t, f)
			node := f.newNode(t)

			err := node.Validate(ctx, tx)
			var verr *validator.ValidationFailedError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, test.checks, verr.Checks)
			require.Equal(t, node.ID(), verr.ValidatorID)

			count, err := f.repo.Signatures.CountByTransactionID(ctx, tx.ID)
			require.NoError(t, err)
			require.Zero(t, count)
			got, err := f.repo.Transactions.GetByID(ctx, tx.ID)
			require.NoError(t, err)
			require.NotEqual(t, entity.StatusFailed, got.Status)
			require.Equal(t, 1, f.events.Count(events.ValidationFailed))
			require.Less(t, node.SuccessRatio(), 1.0)
		})
	}
}

func TestNode_ProcessPendingPromotesLocked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	locked := f.newTx(t, "tx-locked", entity.StatusLocked, time.Now(), 3)
	f.newTx(t, "tx-minting", entity.StatusMinting, time.Now(), 3)
	node := f.newNode(t)

	require.NoError(t, node.ProcessPending(ctx))

	got, err := f.repo.Transactions.GetByID(ctx, locked.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusValidating, got.Status)
	count, err := f.repo.Signatures.CountByTransactionID(ctx, "tx-minting")
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, node.ProcessPending(ctx))
	count, err = f.repo.Signatures.CountByTransactionID(ctx, locked.ID)
	require.NoError(t, err)
	require.Equal(t, uint(1), count)
}

func TestSigner_VerifySignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tx := f.newTx(t, "tx-1", entity.StatusValidating, time.Now(), 2)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := validator.NewSigner(key)

	sig, err := signer.Sign(tx)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), sig.ValidatorID)
	require.NoError(t, validator.VerifySignature(tx, sig))

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	forged := *sig
	forged.ValidatorID = crypto.PubkeyToAddress(other.PublicKey).Hex()
	forged.MessageHash = entity.MessageHash(tx.VerificationHash, forged.ValidatorID)
	require.ErrorIs(t, validator.VerifySignature(tx, &forged), validator.ErrSignatureMismatch)

	changed := *tx
	changed.Amount = entity.NewAmount(2000)
	changed.VerificationHash, err = entity.ComputeVerificationHash(&changed)
	require.NoError(t, err)
	require.ErrorIs(t, validator.VerifySignature(&changed, sig), validator.ErrSignatureMismatch)

	_, err = validator.ParseSigner("not a key")
	require.Error(t, err)
}

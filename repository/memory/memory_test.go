package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/repository/memory"
)

func newTransaction(id string, status entity.Status, createdAt time.Time) *entity.BridgeTransaction {
	return &entity.BridgeTransaction{
		ID:                 id,
		SourceKind:         entity.ChainKindNative,
		DestinationKind:    entity.ChainKindEVM,
		SourceChain:        "xrpl",
		DestinationChain:   "ethereum",
		SourceAddress:      "rSource",
		DestinationAddress: "0xdestination",
		Amount:             entity.NewAmount(1000),
		Fee:                entity.NewAmount(11),
		Status:             status,
		VerificationHash:   common.HexToHash("0x01"),
		CreatedAt:          createdAt,
	}
}

func TestTransactions_UpdateStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("a", entity.StatusInitiated, time.Now())))

	hash := "0xsource"
	ok, err := repo.Transactions.UpdateStatus(ctx, "a", entity.StatusInitiated, entity.StatusValidating, &entity.StatusUpdate{SourceTxHash: &hash})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Transactions.UpdateStatus(ctx, "a", entity.StatusInitiated, entity.StatusFailed, nil)
	require.NoError(t, err)
	require.False(t, ok, "expected status no longer matches")

	_, err = repo.Transactions.UpdateStatus(ctx, "a", entity.StatusMinting, entity.StatusValidating, nil)
	require.ErrorIs(t, err, entity.ErrInvalidTransition)

	tx, err := repo.Transactions.GetByID(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, entity.StatusValidating, tx.Status)
	require.Equal(t, hash, *tx.SourceTxHash)

	_, err = repo.Transactions.GetByID(ctx, "missing")
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestTransactions_ConcurrentPromotion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("a", entity.StatusValidating, time.Now())))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Transactions.UpdateStatus(ctx, "a", entity.StatusValidating, entity.StatusMinting, nil)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
}

func TestSignatures_ConcurrentDuplicateSign(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("a", entity.StatusValidating, time.Now())))

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Signatures.Append(ctx, &entity.ValidatorSignature{
				TransactionID: "a",
				ValidatorID:   "validator-1",
				Signature:     []byte{1},
			})
			if err != nil {
				require.ErrorIs(t, err, entity.ErrDuplicateSignature)
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	count, err := repo.Signatures.CountByTransactionID(ctx, "a")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, 15, duplicates)
}

func TestTransactions_Queries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	now := time.Now()
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("old", entity.StatusValidating, now.Add(-2*time.Hour))))
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("new", entity.StatusValidating, now)))
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("done", entity.StatusInitiated, now)))
	_, err := repo.Transactions.UpdateStatus(ctx, "done", entity.StatusInitiated, entity.StatusCancelled, nil)
	require.NoError(t, err)

	cutoff := now.Add(-time.Hour)
	stuck, err := repo.Transactions.FindPending(ctx, entity.PendingStatuses, &cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	require.Equal(t, "old", stuck[0].ID)

	require.NoError(t, repo.Signatures.Append(ctx, &entity.ValidatorSignature{TransactionID: "old", ValidatorID: "v1"}))
	unsigned, err := repo.Transactions.FindUnsigned(ctx, "v1", []entity.Status{entity.StatusValidating}, 10)
	require.NoError(t, err)
	require.Len(t, unsigned, 1)
	require.Equal(t, "new", unsigned[0].ID)

	history, err := repo.Transactions.FindByAddress(ctx, "0xdestination", &entity.TransactionFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "new", history[0].ID)
	require.Equal(t, "old", history[1].ID)

	stats, err := repo.Transactions.Statistics(ctx, nil)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Total.Count)
	require.EqualValues(t, 2, stats.Count(entity.StatusValidating))
	require.Equal(t, entity.NewAmount(3000), stats.BySourceChain["xrpl"].Volume)
	require.Equal(t, entity.NewAmount(33), stats.Fees)
}

func TestTransactions_DestinationHashAndRetries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("a", entity.StatusMinting, time.Now())))

	ok, err := repo.Transactions.SetDestinationTxHash(ctx, "a", "0x1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Transactions.SetDestinationTxHash(ctx, "a", "0x2")
	require.NoError(t, err)
	require.False(t, ok)

	for i := 0; i < 2; i++ {
		ok, err = repo.Transactions.IncrementRetryCount(ctx, "a", entity.StatusMinting, 2)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err = repo.Transactions.IncrementRetryCount(ctx, "a", entity.StatusMinting, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidators(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	now := time.Now()

	require.NoError(t, repo.Validators.Ensure(ctx, &entity.Validator{ID: "v1", AddedAt: now}))
	ok, err := repo.Validators.RecordHeartbeat(ctx, &entity.Heartbeat{ValidatorID: "v1", At: now})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Validators.RecordHeartbeat(ctx, &entity.Heartbeat{ValidatorID: "unknown", At: now})
	require.NoError(t, err)
	require.False(t, ok)

	count, err := repo.Validators.CountLive(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	ok, err = repo.Validators.Remove(ctx, "v1", now)
	require.NoError(t, err)
	require.True(t, ok)
	count, err = repo.Validators.CountLive(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTransactions_Claim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	require.NoError(t, repo.Transactions.Create(ctx, newTransaction("a", entity.StatusMinting, time.Now())))

	until := time.Now().Add(time.Minute)
	ok, err := repo.Transactions.Claim(ctx, "a", entity.StatusMinting, until)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Transactions.Claim(ctx, "a", entity.StatusMinting, until)
	require.NoError(t, err)
	require.False(t, ok, "lease is still held")

	require.NoError(t, repo.Transactions.Unclaim(ctx, "a"))
	ok, err = repo.Transactions.Claim(ctx, "a", entity.StatusFailed, until)
	require.NoError(t, err)
	require.False(t, ok, "status does not match")
	ok, err = repo.Transactions.Claim(ctx, "a", entity.StatusMinting, time.Now().Add(-time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Transactions.Claim(ctx, "a", entity.StatusMinting, until)
	require.NoError(t, err)
	require.True(t, ok, "expired lease can be taken over")

	ok, err = repo.Transactions.UpdateStatus(ctx, "a", entity.StatusMinting, entity.StatusFailed, nil)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Transactions.Claim(ctx, "a", entity.StatusFailed, until)
	require.NoError(t, err)
	require.True(t, ok, "status change ends the lease")
}

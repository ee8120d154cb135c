package bridge

import (
	"context"
	"fmt"

	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/repository"
)

// PromoteOnQuorum moves a VALIDATING record to MINTING once it holds required signatures.
// When several workers observe the threshold at once, exactly one of them gets true.
func PromoteOnQuorum(ctx context.Context, repo *repository.Repo, publisher events.Publisher, actor, id string, required uint) (bool, error) {
	count, err := repo.Signatures.CountByTransactionID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("can't count signatures: %w", err)
	}
	if count < required {
		return false, nil
	}
	ok, err := repo.Transactions.UpdateStatus(ctx, id, entity.StatusValidating, entity.StatusMinting, nil)
	if err != nil || !ok {
		return false, err
	}
	publisher.Publish(ctx, events.New(events.QuorumReached, actor, id).
		Transition(entity.StatusValidating, entity.StatusMinting).
		With("signatures", count).
		With("required", required))
	return true, nil
}

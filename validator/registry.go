package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/events"
	"github.com/xbridge/bridge-coordinator/logging"
	"github.com/xbridge/bridge-coordinator/repository"
)

const ActorConfig = "config"

var (
	ErrUnknownValidator   = errors.New("unknown or removed validator")
	ErrInvalidValidatorID = errors.New("validator id must be an EVM address")
)

// Registry tracks validator membership and liveness. All state lives in the repository,
// so every process can hold its own Registry.
type Registry struct {
	logger   logging.Logger
	repo     *repository.Repo
	events   events.Publisher
	seed     []string
	required uint
	liveness time.Duration
}

func NewRegistry(logger logging.Logger, cfg *config.Config, repo *repository.Repo, publisher events.Publisher) *Registry {
	return &Registry{
		logger:   logger.WithField("service", "registry"),
		repo:     repo,
		events:   publisher,
		seed:     cfg.Registry.Validators,
		required: cfg.Bridge.RequiredValidations,
		liveness: cfg.Registry.LivenessWindow,
	}
}

func normalizeID(id string) (string, error) {
	if !common.IsHexAddress(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidValidatorID, id)
	}
	return common.HexToAddress(id).Hex(), nil
}

// Seed ensures every validator listed in the config is registered.
func (r *Registry) Seed(ctx context.Context) error {
	for _, id := range r.seed {
		if err := r.Add(ctx, id, ActorConfig); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Add(ctx context.Context, id, actor string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	v := &entity.Validator{
		ID:      id,
		Active:  true,
		AddedAt: time.Now().UTC(),
	}
	if err = r.repo.Validators.Ensure(ctx, v); err != nil {
		return fmt.Errorf("can't add validator %s: %w", id, err)
	}
	r.logger.WithFields(logrus.Fields{
		"validator": id,
		"actor":     actor,
	}).Info("validator added")
	r.events.Publish(ctx, events.New(events.ValidatorAdded, actor, "").With("validator", id))
	return nil
}

func (r *Registry) Remove(ctx context.Context, id, actor string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	ok, err := r.repo.Validators.Remove(ctx, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("can't remove validator %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, id)
	}
	r.logger.WithFields(logrus.Fields{
		"validator": id,
		"actor":     actor,
	}).Info("validator removed")
	r.events.Publish(ctx, events.New(events.ValidatorRemoved, actor, "").With("validator", id))
	return nil
}

// Heartbeat refreshes the liveness of a registered, active validator.
func (r *Registry) Heartbeat(ctx context.Context, hb *entity.Heartbeat) error {
	ok, err := r.repo.Validators.RecordHeartbeat(ctx, hb)
	if err != nil {
		return fmt.Errorf("can't record heartbeat: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, hb.ValidatorID)
	}
	LastHeartbeat.WithLabelValues(hb.ValidatorID).Set(float64(hb.At.Unix()))
	return nil
}

func (r *Registry) LiveCount(ctx context.Context) (uint, error) {
	n, err := r.repo.Validators.CountLive(ctx, time.Now().Add(-r.liveness))
	if err != nil {
		return 0, fmt.Errorf("can't count live validators: %w", err)
	}
	LiveValidators.Set(float64(n))
	return n, nil
}

// HasQuorum reports whether enough validators are live to complete a new transfer.
func (r *Registry) HasQuorum(ctx context.Context) (bool, error) {
	n, err := r.LiveCount(ctx)
	if err != nil {
		return false, err
	}
	return n >= r.required, nil
}

func (r *Registry) Required() uint {
	return r.required
}

func (r *Registry) Validators(ctx context.Context) ([]*entity.Validator, error) {
	return r.repo.Validators.FindActive(ctx)
}

// ActiveIDs returns the ids of current members, used to filter signatures.
func (r *Registry) ActiveIDs(ctx context.Context) (map[string]bool, error) {
	validators, err := r.repo.Validators.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't find active validators: %w", err)
	}
	ids := make(map[string]bool, len(validators))
	for _, v := range validators {
		ids[v.ID] = true
	}
	return ids, nil
}

package entity

import (
	"context"
	"time"
)

type Validator struct {
	ID              string     `db:"id" json:"id"`
	Active          bool       `db:"active" json:"active"`
	AddedAt         time.Time  `db:"added_at" json:"addedAt"`
	RemovedAt       *time.Time `db:"removed_at" json:"removedAt,omitempty"`
	LastHeartbeatAt *time.Time `db:"last_heartbeat_at" json:"lastHeartbeatAt,omitempty"`
	SignedCount     uint64     `db:"signed_count" json:"signedCount"`
	FailedCount     uint64     `db:"failed_count" json:"failedCount"`
	SuccessRatio    float64    `db:"success_ratio" json:"successRatio"`
}

// Live reports whether the validator sent a heartbeat after since.
func (v *Validator) Live(since time.Time) bool {
	return v.Active && v.LastHeartbeatAt != nil && v.LastHeartbeatAt.After(since)
}

type Heartbeat struct {
	ValidatorID  string
	At           time.Time
	SignedCount  uint64
	FailedCount  uint64
	SuccessRatio float64
}

type ValidatorsRepo interface {
	// Ensure adds the validator or reactivates a removed one.
	Ensure(ctx context.Context, v *Validator) error
	Remove(ctx context.Context, id string, at time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*Validator, error)
	FindActive(ctx context.Context) ([]*Validator, error)
	CountLive(ctx context.Context, since time.Time) (uint, error)
	// RecordHeartbeat reports false for unknown or removed validators.
	RecordHeartbeat(ctx context.Context, hb *Heartbeat) (bool, error)
}

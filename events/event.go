package events

import (
	"context"
	"time"

	"github.com/xbridge/bridge-coordinator/entity"
)

type Type string

const (
	TransactionInitiated Type = "transaction_initiated"
	TransactionLocked    Type = "transaction_locked"
	LockFailed           Type = "lock_failed"
	SourceUnrecorded     Type = "source_unrecorded"
	Signed               Type = "signed"
	ValidationFailed     Type = "validation_failed"
	QuorumReached        Type = "quorum_reached"
	MintSubmitted        Type = "mint_submitted"
	BridgeCompleted      Type = "bridge_completed"
	MintFailed           Type = "mint_failed"
	TransactionExpired   Type = "transaction_expired"
	TransactionRetried   Type = "transaction_retried"
	TransactionRefunded  Type = "transaction_refunded"
	TransactionCancelled Type = "transaction_cancelled"
	StuckDetected        Type = "stuck_detected"
	HealthChanged        Type = "health_changed"
	ValidatorAdded       Type = "validator_added"
	ValidatorRemoved     Type = "validator_removed"
)

// Event is a single outbound notification. From and To are set for status transitions.
type Event struct {
	Type          Type                   `json:"type"`
	Actor         string                 `json:"actor"`
	TransactionID string                 `json:"transactionId,omitempty"`
	From          entity.Status          `json:"from,omitempty"`
	To            entity.Status          `json:"to,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	At            time.Time              `json:"at"`
}

func New(t Type, actor, txID string) *Event {
	return &Event{
		Type:          t,
		Actor:         actor,
		TransactionID: txID,
		At:            time.Now().UTC(),
	}
}

func (e *Event) Transition(from, to entity.Status) *Event {
	e.From = from
	e.To = to
	return e
}

func (e *Event) With(key string, value interface{}) *Event {
	if e.Payload == nil {
		e.Payload = make(map[string]interface{}, 4)
	}
	e.Payload[key] = value
	return e
}

// Publisher is implemented by Bus and Recorder.
type Publisher interface {
	Publish(ctx context.Context, e *Event)
}

// Sink consumes events delivered by the bus.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e *Event) error
}

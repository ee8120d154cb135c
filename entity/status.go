package entity

import "errors"

type Status string

const (
	StatusInitiated  Status = "INITIATED"
	StatusLocked     Status = "LOCKED"
	StatusValidating Status = "VALIDATING"
	StatusMinting    Status = "MINTING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// PendingStatuses are the non-terminal states a record passes through on the happy path.
var PendingStatuses = []Status{StatusInitiated, StatusLocked, StatusValidating, StatusMinting}

// AllStatuses in lifecycle order.
var AllStatuses = []Status{
	StatusInitiated, StatusLocked, StatusValidating, StatusMinting,
	StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled,
}

var transitions = map[Status]map[Status]bool{
	StatusInitiated:  {StatusLocked: true, StatusValidating: true, StatusFailed: true, StatusCancelled: true},
	StatusLocked:     {StatusValidating: true, StatusFailed: true},
	StatusValidating: {StatusMinting: true, StatusFailed: true},
	StatusMinting:    {StatusCompleted: true, StatusFailed: true},
	StatusFailed:     {StatusRefunded: true},
}

// CanTransition reports whether a record may move from one status to another.
// Progress is strictly one-directional.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	default:
		return false
	}
}

package monitor

import (
	"time"
)

type Health string

const (
	Healthy  Health = "healthy"
	Degraded Health = "degraded"
	Critical Health = "critical"
)

func (h Health) gaugeValue() float64 {
	switch h {
	case Degraded:
		return 1
	case Critical:
		return 2
	default:
		return 0
	}
}

type HealthReport struct {
	Status         Health    `json:"status"`
	Total          uint64    `json:"total"`
	Failed         uint64    `json:"failed"`
	FailureRatio   float64   `json:"failureRatio"`
	LiveValidators uint      `json:"liveValidators"`
	Quorum         bool      `json:"quorum"`
	Stuck          int       `json:"stuck"`
	CheckedAt      time.Time `json:"checkedAt"`
}

// classify maps the failure ratio and quorum state to a health level.
// Losing quorum is always critical since no new transfer could complete.
func classify(ratio float64, quorum bool, degraded, critical float64) Health {
	switch {
	case !quorum || ratio >= critical:
		return Critical
	case ratio >= degraded:
		return Degraded
	default:
		return Healthy
	}
}

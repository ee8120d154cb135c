package presenter

import (
	"time"

	"github.com/xbridge/bridge-coordinator/entity"
)

type HistoryResult struct {
	Address      string                      `json:"address"`
	Transactions []*entity.BridgeTransaction `json:"transactions"`
}

type ValidatorInfo struct {
	*entity.Validator
	Live bool `json:"live"`
}

type ValidatorsResult struct {
	Required       uint             `json:"required"`
	LiveValidators uint             `json:"liveValidators"`
	Quorum         bool             `json:"quorum"`
	LivenessWindow time.Duration    `json:"livenessWindow"`
	Validators     []*ValidatorInfo `json:"validators"`
}

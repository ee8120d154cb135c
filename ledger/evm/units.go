package evm

import (
	"fmt"
	"math/big"

	"github.com/xbridge/bridge-coordinator/entity"
)

// Bridged tokens use 18 decimals on EVM chains.
var weiPerMicroUnit = big.NewInt(1_000_000_000_000)

func ToWei(a entity.Amount) *big.Int {
	return new(big.Int).Mul(big.NewInt(int64(a)), weiPerMicroUnit)
}

// FromWei rejects values that carry precision below one micro-unit.
func FromWei(v *big.Int) (entity.Amount, error) {
	if v.Sign() < 0 {
		return 0, fmt.Errorf("%w: negative wei value %s", entity.ErrInvalidAmount, v)
	}
	q, r := new(big.Int).QuoRem(v, weiPerMicroUnit, new(big.Int))
	if r.Sign() != 0 {
		return 0, fmt.Errorf("%w: wei value %s is not a whole number of micro-units", entity.ErrInvalidAmount, v)
	}
	if !q.IsInt64() {
		return 0, fmt.Errorf("%w: wei value %s is too large", entity.ErrInvalidAmount, v)
	}
	return entity.Amount(q.Int64()), nil
}

package fee

import (
	"errors"
	"fmt"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
)

var ErrUnsupportedChain = errors.New("no fee policy for chain")

// Policy is the fee schedule of a single destination chain. PercentageBps is in [0, 10000].
type Policy struct {
	Base          entity.Amount
	PercentageBps int64
	Minimum       entity.Amount
	Maximum       entity.Amount
}

// Calculator maps (destination chain, amount) to a fee. It is safe for concurrent use.
type Calculator struct {
	policies map[string]Policy
}

func NewCalculator(policies map[string]Policy) *Calculator {
	cp := make(map[string]Policy, len(policies))
	for chain, p := range policies {
		cp[chain] = p
	}
	return &Calculator{policies: cp}
}

func NewCalculatorFromConfig(chains map[string]*config.ChainConfig) *Calculator {
	policies := make(map[string]Policy, len(chains))
	for id, chain := range chains {
		if chain.Fee == nil {
			continue
		}
		policies[id] = Policy{
			Base:          chain.Fee.Base,
			PercentageBps: chain.Fee.PercentageBps,
			Minimum:       chain.Fee.Minimum,
			Maximum:       chain.Fee.Maximum,
		}
	}
	return NewCalculator(policies)
}

// Calculate returns clamp(base + floor(amount*bps/10000), minimum, maximum).
// A zero maximum means the policy has no cap.
func (c *Calculator) Calculate(chain string, amount entity.Amount) (entity.Amount, error) {
	p, ok := c.policies[chain]
	if !ok {
		return 0, fmt.Errorf("%w %s", ErrUnsupportedChain, chain)
	}
	fee := p.Base + amount.MulBps(p.PercentageBps)
	if fee < p.Minimum {
		fee = p.Minimum
	}
	if p.Maximum > 0 && fee > p.Maximum {
		fee = p.Maximum
	}
	return fee, nil
}

func (c *Calculator) Policy(chain string) (Policy, bool) {
	p, ok := c.policies[chain]
	return p, ok
}

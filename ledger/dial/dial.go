// Package dial builds the ledger clients of every configured chain.
package dial

import (
	"fmt"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/ledger"
	"github.com/xbridge/bridge-coordinator/ledger/evm"
	"github.com/xbridge/bridge-coordinator/ledger/xrpl"
	"github.com/xbridge/bridge-coordinator/logging"
)

// Clients dials every chain with an adapter. Missing secrets yield read-only clients:
// they can verify and confirm but every submission fails.
func Clients(logger logging.Logger, cfg *config.Config) (ledger.Clients, error) {
	clients := make(ledger.Clients, len(cfg.Chains))
	for id, chain := range cfg.Chains {
		switch chain.Kind {
		case entity.ChainKindNative:
			clients[id] = xrpl.NewClientFromConfig(chain, cfg.Secrets.DoorSecret)
		case entity.ChainKindEVM:
			client, err := evm.NewClientFromConfig(chain, cfg.Secrets.RelayerKey)
			if err != nil {
				return nil, fmt.Errorf("can't dial chain %s: %w", id, err)
			}
			clients[id] = client
		default:
			logger.WithField("chain", id).Warnf("no ledger adapter for %s chains, transfers on it will be rejected", chain.Kind)
		}
	}
	return clients, nil
}

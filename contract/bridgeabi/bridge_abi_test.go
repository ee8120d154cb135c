package bridgeabi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/contract/bridgeabi"
)

func TestEventSignatures(t *testing.T) {
	t.Parallel()

	require.NotZero(t, bridgeabi.BurnedEventSignature)
	require.NotZero(t, bridgeabi.MintedEventSignature)
	require.NotZero(t, bridgeabi.ReleasedEventSignature)
	require.True(t, bridgeabi.BridgeABI.AllEvents()[bridgeabi.Burned])
	require.True(t, bridgeabi.BridgeABI.AllEvents()[bridgeabi.Minted])
}

package abi_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/contract/abi"
	"github.com/xbridge/bridge-coordinator/contract/bridgeabi"
)

var (
	recipientAddr = common.HexToAddress("0x01")
	recipient     = recipientAddr.Hash()
	proof         = crypto.Keccak256Hash([]byte("proof"))
)

func TestABI_AllEvents(t *testing.T) {
	t.Parallel()

	require.Equal(t, map[string]bool{
		bridgeabi.Burned:   true,
		bridgeabi.Minted:   true,
		bridgeabi.Released: true,
	}, bridgeabi.BridgeABI.AllEvents())
}

func TestABI_FindMatchingEventABI(t *testing.T) {
	t.Parallel()

	a := bridgeabi.BridgeABI

	event := a.FindMatchingEventABI([]common.Hash{bridgeabi.MintedEventSignature, recipient, proof})
	require.NotNil(t, event)
	require.Equal(t, "Minted", event.Name)
	require.Nil(t, a.FindMatchingEventABI([]common.Hash{bridgeabi.MintedEventSignature, recipient}))
	require.Nil(t, a.FindMatchingEventABI([]common.Hash{bridgeabi.BurnedEventSignature, recipient, proof}))

	event = a.FindMatchingEventABI([]common.Hash{bridgeabi.BurnedEventSignature, recipient})
	require.NotNil(t, event)
	require.Equal(t, "Burned", event.Name)
	require.Len(t, abi.Indexed(event.Inputs), 1)
}

func TestABI_ParseLog(t *testing.T) {
	t.Parallel()

	a := bridgeabi.BridgeABI
	amount := big.NewInt(989)
	amountData := common.BigToHash(amount).Bytes()

	t.Run("should parse mint event", func(t *testing.T) {
		t.Parallel()
		log := &types.Log{Topics: []common.Hash{bridgeabi.MintedEventSignature, recipient, proof}, Data: amountData}
		event, data, err := a.ParseLog(log)
		require.NoError(t, err)
		require.Equal(t, bridgeabi.Minted, event)
		require.Equal(t, map[string]interface{}{
			"recipient": recipientAddr,
			"amount":    amount,
			"proof":     [32]byte(proof),
		}, data)
	})

	t.Run("should parse burn event with dynamic data", func(t *testing.T) {
		t.Parallel()
		data, err := a.Events["Burned"].Inputs.NonIndexed().Pack(amount, "rDestination")
		require.NoError(t, err)
		event, values, err := a.ParseLog(&types.Log{
			Topics: []common.Hash{bridgeabi.BurnedEventSignature, recipient},
			Data:   data,
		})
		require.NoError(t, err)
		require.Equal(t, bridgeabi.Burned, event)
		require.Equal(t, recipientAddr, values["from"])
		require.Equal(t, amount, values["amount"])
		require.Equal(t, "rDestination", values["destination"])
	})

	t.Run("should not parse anonymous event", func(t *testing.T) {
		t.Parallel()
		event, data, err := a.ParseLog(&types.Log{Data: amountData})
		require.ErrorIs(t, err, abi.ErrInvalidEvent)
		require.Empty(t, event)
		require.Empty(t, data)
	})

	t.Run("should skip unknown event", func(t *testing.T) {
		t.Parallel()
		transfer := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
		event, data, err := a.ParseLog(&types.Log{Topics: []common.Hash{transfer, recipient, recipient}, Data: amountData})
		require.NoError(t, err)
		require.Empty(t, event)
		require.Empty(t, data)
	})

	t.Run("should fail to decode truncated data", func(t *testing.T) {
		t.Parallel()
		log := &types.Log{Topics: []common.Hash{bridgeabi.BurnedEventSignature, recipient}, Data: amountData}
		event, data, err := a.ParseLog(log)
		require.Error(t, err)
		require.Empty(t, event)
		require.Empty(t, data)
	})
}

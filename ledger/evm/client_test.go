package evm_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/contract/bridgeabi"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/ledger"
	"github.com/xbridge/bridge-coordinator/ledger/evm"
)

var bridgeAddr = common.HexToAddress("0x00000000000000000000000000000000000b1d9e")

type fakeEthClient struct {
	head      uint64
	receipts  map[common.Hash]*types.Receipt
	processed bool
	sent      []*types.Transaction
}

func (c *fakeEthClient) ChainID() *big.Int { return big.NewInt(1337) }

func (c *fakeEthClient) BlockNumber(context.Context) (uint64, error) { return c.head, nil }

func (c *fakeEthClient) TransactionReceiptByHash(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if r, ok := c.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (c *fakeEthClient) CallContract(context.Context, ethereum.CallMsg) ([]byte, error) {
	return bridgeabi.BridgeABI.Methods["processed"].Outputs.Pack(c.processed)
}

func (c *fakeEthClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(c.sent)), nil
}

func (c *fakeEthClient) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (c *fakeEthClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (c *fakeEthClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeEthClient) TransactionSender(tx *types.Transaction) (common.Address, error) {
	return types.LatestSignerForChainID(c.ChainID()).Sender(tx)
}

func TestUnits(t *testing.T) {
	t.Parallel()

	wei := evm.ToWei(entity.MustParseAmount("1.5"))
	require.Equal(t, "1500000000000000000", wei.String())
	a, err := evm.FromWei(wei)
	require.NoError(t, err)
	require.Equal(t, entity.MustParseAmount("1.5"), a)

	_, err = evm.FromWei(big.NewInt(1))
	require.ErrorIs(t, err, entity.ErrInvalidAmount)
}

func TestClient_Mint(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	eth := &fakeEthClient{}
	client, err := evm.NewClient(eth, bridgeAddr, key)
	require.NoError(t, err)

	hash, err := client.Mint(context.Background(), &ledger.MintRequest{
		Recipient:  "0x0000000000000000000000000000000000000001",
		Amount:     entity.NewAmount(989),
		Proof:      common.HexToHash("0x01"),
		Signatures: [][]byte{{1}, {2}, {3}},
	})
	require.NoError(t, err)
	require.Len(t, eth.sent, 1)
	require.Equal(t, eth.sent[0].Hash().String(), hash)
	require.Equal(t, bridgeAddr, *eth.sent[0].To())
	sender, err := eth.TransactionSender(eth.sent[0])
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)

	processed, err := client.IsProcessed(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.False(t, processed)

	eth.processed = true
	processed, err = client.IsProcessed(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.True(t, processed)
	_, err = client.Mint(context.Background(), &ledger.MintRequest{
		Recipient: "0x0000000000000000000000000000000000000001",
		Amount:    entity.NewAmount(989),
		Proof:     common.HexToHash("0x01"),
	})
	require.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
	require.Len(t, eth.sent, 1)

	_, err = client.Mint(context.Background(), &ledger.MintRequest{Recipient: "rNotEvm"})
	require.ErrorIs(t, err, evm.ErrInvalidAddress)
}

func TestClient_ReadOnly(t *testing.T) {
	t.Parallel()

	client, err := evm.NewClient(&fakeEthClient{}, bridgeAddr, nil)
	require.NoError(t, err)
	_, err = client.Release(context.Background(), "0x0000000000000000000000000000000000000001", entity.NewAmount(1), "memo")
	require.Error(t, err)
	_, err = client.Lock(context.Background(), &ledger.LockRequest{})
	require.ErrorIs(t, err, ledger.ErrUnsupportedOperation)
}

func TestClient_ConfirmationsAndBurn(t *testing.T) {
	t.Parallel()

	from := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	data, err := bridgeabi.BridgeABI.Events["Burned"].Inputs.NonIndexed().Pack(evm.ToWei(entity.NewAmount(25)), "rDestination")
	require.NoError(t, err)

	burnHash := common.HexToHash("0xb0")
	revertedHash := common.HexToHash("0xb1")
	eth := &fakeEthClient{
		head: 110,
		receipts: map[common.Hash]*types.Receipt{
			burnHash: {
				TxHash:      burnHash,
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(100),
				Logs: []*types.Log{{
					Address: bridgeAddr,
					Topics:  []common.Hash{bridgeabi.BurnedEventSignature, from.Hash()},
					Data:    data,
				}},
			},
			revertedHash: {
				TxHash:      revertedHash,
				Status:      types.ReceiptStatusFailed,
				BlockNumber: big.NewInt(105),
			},
		},
	}
	client, err := evm.NewClient(eth, bridgeAddr, nil)
	require.NoError(t, err)
	ctx := context.Background()

	confirmations, err := client.GetConfirmations(ctx, burnHash.String())
	require.NoError(t, err)
	require.EqualValues(t, 11, confirmations)

	_, err = client.GetConfirmations(ctx, common.HexToHash("0xff").String())
	require.ErrorIs(t, err, ledger.ErrTxNotFound)

	event, err := client.ParseBurnEvent(ctx, burnHash.String())
	require.NoError(t, err)
	require.Equal(t, entity.NewAmount(25), event.Amount)
	require.Equal(t, "rDestination", event.Destination)
	require.Equal(t, from.String(), event.From)

	receipt, err := client.GetReceipt(ctx, revertedHash.String())
	require.NoError(t, err)
	require.False(t, receipt.Success)
	_, err = client.ParseBurnEvent(ctx, revertedHash.String())
	require.ErrorIs(t, err, ledger.ErrBurnEventNotFound)
}

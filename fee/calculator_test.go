package fee_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xbridge/bridge-coordinator/config"
	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/fee"
)

func TestCalculator_Calculate(t *testing.T) {
	t.Parallel()

	calc := fee.NewCalculator(map[string]fee.Policy{
		"ethereum": {
			Base:          entity.NewAmount(10),
			PercentageBps: 10,
			Minimum:       entity.NewAmount(10),
			Maximum:       entity.NewAmount(5000),
		},
		"solana": {
			Base:          0,
			PercentageBps: 25,
			Minimum:       entity.MustParseAmount("0.5"),
			Maximum:       entity.NewAmount(2),
		},
		"polygon": {
			Base:          entity.NewAmount(1),
			PercentageBps: 100,
			Minimum:       entity.NewAmount(2),
		},
	})

	for _, test := range []struct {
		Name   string
		Chain  string
		Amount entity.Amount
		Fee    entity.Amount
	}{
		{"base plus percentage", "ethereum", entity.NewAmount(1000), entity.NewAmount(11)},
		{"fractional percentage", "ethereum", entity.MustParseAmount("1234.567891"), entity.MustParseAmount("11.234567")},
		{"ceiling", "ethereum", entity.NewAmount(10_000_000), entity.NewAmount(5000)},
		{"floor", "solana", entity.NewAmount(10), entity.MustParseAmount("0.5")},
		{"between bounds", "solana", entity.NewAmount(400), entity.NewAmount(1)},
		{"solana ceiling", "solana", entity.NewAmount(100_000), entity.NewAmount(2)},
		{"uncapped minimum", "polygon", entity.NewAmount(50), entity.NewAmount(2)},
		{"uncapped", "polygon", entity.NewAmount(1_000_000), entity.NewAmount(10_001)},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			res, err := calc.Calculate(test.Chain, test.Amount)
			require.NoError(t, err)
			require.Equal(t, test.Fee, res, "got %s, want %s", res, test.Fee)
		})
	}
}

func TestCalculator_UnsupportedChain(t *testing.T) {
	t.Parallel()

	calc := fee.NewCalculator(nil)
	_, err := calc.Calculate("ethereum", entity.NewAmount(1))
	require.ErrorIs(t, err, fee.ErrUnsupportedChain)
}

func TestNewCalculatorFromConfig(t *testing.T) {
	t.Parallel()

	calc := fee.NewCalculatorFromConfig(map[string]*config.ChainConfig{
		"xrpl": {Kind: entity.ChainKindNative},
		"ethereum": {Kind: entity.ChainKindEVM, Fee: &config.FeeConfig{
			Base:          entity.NewAmount(1),
			PercentageBps: 100,
			Maximum:       entity.NewAmount(100),
		}},
	})

	_, ok := calc.Policy("xrpl")
	require.False(t, ok)
	res, err := calc.Calculate("ethereum", entity.NewAmount(50))
	require.NoError(t, err)
	require.Equal(t, entity.MustParseAmount("1.5"), res)
}

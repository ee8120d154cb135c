package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// AmountDecimals is the fixed-point precision of every monetary value in the bridge.
// One unit of the bridged token is AmountScale micro-units, matching XRP drops.
const (
	AmountDecimals = 6
	AmountScale    = 1_000_000
)

const bpsDenominator = 10_000

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a non-negative monetary value in micro-units.
type Amount int64

func NewAmount(units int64) Amount {
	return Amount(units * AmountScale)
}

func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w %q: %s", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w %q: negative value", ErrInvalidAmount, s)
	}
	scaled := d.Shift(AmountDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w %q: more than %d fractional digits", ErrInvalidAmount, s, AmountDecimals)
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("%w %q: value is too large", ErrInvalidAmount, s)
	}
	return Amount(scaled.IntPart()), nil
}

func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -AmountDecimals)
}

func (a Amount) String() string {
	return a.Decimal().String()
}

// MulBps returns floor(a * bps / 10000) without intermediate overflow.
func (a Amount) MulBps(bps int64) Amount {
	return (a/bpsDenominator)*Amount(bps) + (a%bpsDenominator)*Amount(bps)/bpsDenominator
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseAmount(value.Value)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

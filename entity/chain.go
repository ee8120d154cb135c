package entity

import (
	"fmt"
	"strings"
)

type ChainKind string

const (
	ChainKindNative ChainKind = "native"
	ChainKindEVM    ChainKind = "evm"
	ChainKindSolana ChainKind = "solana"
)

func (k ChainKind) Valid() bool {
	switch k {
	case ChainKindNative, ChainKindEVM, ChainKindSolana:
		return true
	default:
		return false
	}
}

// Direction is the (source kind, destination kind) pair of a transfer.
type Direction struct {
	Source      ChainKind
	Destination ChainKind
}

const directionSeparator = "_to_"

func NewDirection(source, destination ChainKind) Direction {
	return Direction{Source: source, Destination: destination}
}

func ParseDirection(s string) (Direction, error) {
	parts := strings.Split(s, directionSeparator)
	if len(parts) != 2 {
		return Direction{}, fmt.Errorf("malformed direction %q", s)
	}
	d := NewDirection(ChainKind(parts[0]), ChainKind(parts[1]))
	if err := d.Validate(); err != nil {
		return Direction{}, err
	}
	return d, nil
}

func (d Direction) String() string {
	return string(d.Source) + directionSeparator + string(d.Destination)
}

// Validate requires exactly one side of the transfer to be the native chain.
func (d Direction) Validate() error {
	if !d.Source.Valid() || !d.Destination.Valid() {
		return fmt.Errorf("unknown chain kind in direction %s", d)
	}
	if (d.Source == ChainKindNative) == (d.Destination == ChainKindNative) {
		return fmt.Errorf("direction %s must have exactly one native side", d)
	}
	return nil
}

// Inbound is true for lock-and-mint transfers that move native value into bridge custody.
func (d Direction) Inbound() bool {
	return d.Source == ChainKindNative
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

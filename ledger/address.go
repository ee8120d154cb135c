package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/xbridge/bridge-coordinator/entity"
)

var ErrInvalidAddress = errors.New("invalid address")

// Classic XRPL addresses use the ripple base58 alphabet.
var nativeAddressPattern = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)

// ValidateAddress checks address against the grammar of chains of the given kind.
func ValidateAddress(kind entity.ChainKind, address string) error {
	switch kind {
	case entity.ChainKindNative:
		if !nativeAddressPattern.MatchString(address) {
			return fmt.Errorf("%w %q for native chain", ErrInvalidAddress, address)
		}
	case entity.ChainKindEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%w %q for evm chain", ErrInvalidAddress, address)
		}
		checksummed := common.HexToAddress(address).Hex()
		if err := ethav.Validate(checksummed); err != nil {
			return fmt.Errorf("%w %q for evm chain: %s", ErrInvalidAddress, address, err)
		}
		hexPart := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
		mixedCase := hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart)
		if mixedCase && "0x"+hexPart != checksummed {
			return fmt.Errorf("%w %q: checksum mismatch", ErrInvalidAddress, address)
		}
	case entity.ChainKindSolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("%w %q for solana chain: %s", ErrInvalidAddress, address, err)
		}
	default:
		return fmt.Errorf("%w: unknown chain kind %q", ErrInvalidAddress, kind)
	}
	return nil
}

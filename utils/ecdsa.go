package utils

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignText signs data with the EIP-191 personal message prefix.
func SignText(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(data), key)
	if err != nil {
		return nil, fmt.Errorf("can't sign data: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

func RestoreSignerAddress(data, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	sig = common.CopyBytes(sig)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pk, err := crypto.SigToPub(accounts.TextHash(data), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("can't recover ecdsa signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pk), nil
}

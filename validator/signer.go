package validator

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xbridge/bridge-coordinator/entity"
	"github.com/xbridge/bridge-coordinator/utils"
)

var ErrSignatureMismatch = errors.New("signature does not match validator")

// Signer attests transactions on behalf of one validator identity.
// The identity is the checksummed address of the signing key.
type Signer struct {
	key *ecdsa.PrivateKey
	id  string
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key: key,
		id:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

func ParseSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("can't parse validator key: %w", err)
	}
	return NewSigner(key), nil
}

func (s *Signer) ID() string {
	return s.id
}

func (s *Signer) Sign(tx *entity.BridgeTransaction) (*entity.ValidatorSignature, error) {
	msg := entity.MessageHash(tx.VerificationHash, s.id)
	sig, err := utils.SignText(s.key, msg.Bytes())
	if err != nil {
		return nil, err
	}
	return &entity.ValidatorSignature{
		TransactionID: tx.ID,
		ValidatorID:   s.id,
		Signature:     sig,
		MessageHash:   msg,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// VerifySignature checks that sig was produced by its validator over the current
// verification hash of tx.
func VerifySignature(tx *entity.BridgeTransaction, sig *entity.ValidatorSignature) error {
	msg := entity.MessageHash(tx.VerificationHash, sig.ValidatorID)
	if msg != sig.MessageHash {
		return fmt.Errorf("%w: stale message hash", ErrSignatureMismatch)
	}
	signer, err := utils.RestoreSignerAddress(msg.Bytes(), sig.Signature)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(sig.ValidatorID) || signer != common.HexToAddress(sig.ValidatorID) {
		return fmt.Errorf("%w: recovered %s", ErrSignatureMismatch, signer)
	}
	return nil
}

// Package keys derives account addresses and signing keys from raw private keys and mnemonics.
package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Common errors.
var (
	ErrInvalidKey      = errors.New("invalid private key")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidPath     = errors.New("invalid derivation path")
)

// PrivateKeyLength is the length in bytes of a secp256k1 private key.
const PrivateKeyLength = 32

// Account is an address together with the key that controls it.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// HexKey returns the 0x-prefixed hex encoding of the account key.
func (a *Account) HexKey() string {
	return "0x" + hex.EncodeToString(crypto.FromECDSA(a.PrivateKey))
}

// ParsePrivateKey parses a hex encoded private key with or without a 0x prefix.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	if len(s) != PrivateKeyLength*2 {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidKey, PrivateKeyLength*2, len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	// ToECDSA rejects zero and scalars outside the curve order.
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return key, nil
}

// Address returns the account address controlled by key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// DeriveAddress parses a hex private key and returns its account address.
func DeriveAddress(privateKey string) (common.Address, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return common.Address{}, err
	}
	return Address(key), nil
}

// PublicKey returns the 65-byte uncompressed public key for a hex private key.
func PublicKey(privateKey string) ([]byte, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return crypto.FromECDSAPub(&key.PublicKey), nil
}

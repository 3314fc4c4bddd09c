package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// DefaultDerivationPath is the BIP-44 path of the first Ethereum account.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// FromMnemonic derives the account at path from a BIP-39 mnemonic.
// An empty path selects DefaultDerivationPath.
func FromMnemonic(mnemonic, passphrase, path string) (*Account, error) {
	if path == "" {
		path = DefaultDerivationPath
	}

	dp, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	master, err := masterKey(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	return deriveAccount(master, dp)
}

// DeriveAccounts derives count sequential accounts starting at base.
// The last component of base is incremented for each account.
func DeriveAccounts(mnemonic, passphrase, base string, count int) ([]*Account, error) {
	if base == "" {
		base = DefaultDerivationPath
	}
	if count < 0 {
		return nil, fmt.Errorf("account count must not be negative, got %d", count)
	}

	dp, err := accounts.ParseDerivationPath(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if err := checkIndexRange(dp, count); err != nil {
		return nil, err
	}

	master, err := masterKey(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	result := make([]*Account, count)
	for i := 0; i < count; i++ {
		path := make(accounts.DerivationPath, len(dp))
		copy(path, dp)
		path[len(path)-1] += uint32(i)

		acc, err := deriveAccount(master, path)
		if err != nil {
			return nil, fmt.Errorf("failed to derive account %d: %w", i, err)
		}
		result[i] = acc
	}

	return result, nil
}

// checkIndexRange rejects a count that would carry the last path component across
// the hardened boundary or past the largest index.
func checkIndexRange(dp accounts.DerivationPath, count int) error {
	if count == 0 || len(dp) == 0 {
		return nil
	}

	last := uint64(dp[len(dp)-1])
	limit := uint64(hdkeychain.HardenedKeyStart)
	if last >= limit {
		limit = 1 << 32
	}
	if last+uint64(count-1) >= limit {
		return fmt.Errorf("%w: %d accounts from %s exceed the index range", ErrInvalidPath, count, dp)
	}
	return nil
}

func masterKey(mnemonic, passphrase string) (*hdkeychain.ExtendedKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, passphrase)

	// Network params only select the extended key version bytes, not the derivation.
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	return master, nil
}

func deriveAccount(master *hdkeychain.ExtendedKey, path accounts.DerivationPath) (*Account, error) {
	key := master
	for _, n := range path {
		child, err := key.Derive(n)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", path, err)
		}
		key = child
	}

	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	priv, err := crypto.ToECDSA(ecPriv.Serialize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Account{
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey: priv,
	}, nil
}

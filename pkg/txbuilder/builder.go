// Package txbuilder assembles and signs contract call transactions.
package txbuilder

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// DefaultGasLimit is used when the caller does not set a gas limit.
const DefaultGasLimit = 800000

// Common errors.
var (
	ErrSigning          = errors.New("signing error")
	ErrGasPriceRequired = fmt.Errorf("%w: gas price is required", ErrSigning)
	ErrInvalidQuantity  = errors.New("invalid quantity")
)

// Params are the inputs for a contract call transaction.
type Params struct {
	From     common.Address
	To       common.Address
	ChainID  *big.Int
	Nonce    *big.Int
	GasLimit *big.Int // nil selects DefaultGasLimit
	GasPrice *big.Int
	Data     []byte
}

// Envelope is an unsigned transaction with every numeric field in hex wire format.
type Envelope struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	ChainID  *hexutil.Big   `json:"chainId"`
	Nonce    *hexutil.Big   `json:"nonce"`
	Gas      *hexutil.Big   `json:"gas"`
	GasPrice *hexutil.Big   `json:"gasPrice"`
	Value    *hexutil.Big   `json:"value"`
	Data     hexutil.Bytes  `json:"data"`
}

// SignedTx is a raw signed transaction ready for eth_sendRawTransaction.
type SignedTx struct {
	Raw  string      `json:"raw"`
	Hash common.Hash `json:"hash"`
}

// Build validates p and returns the transaction envelope.
// The value field is always zero: contract calls never transfer native currency.
func Build(p Params) (*Envelope, error) {
	gasLimit := p.GasLimit
	if gasLimit == nil {
		gasLimit = big.NewInt(DefaultGasLimit)
	}
	if p.GasPrice == nil {
		return nil, ErrGasPriceRequired
	}

	env := &Envelope{
		From:     p.From,
		To:       p.To,
		ChainID:  toHexBig(p.ChainID),
		Nonce:    toHexBig(p.Nonce),
		Gas:      toHexBig(gasLimit),
		GasPrice: toHexBig(p.GasPrice),
		Value:    (*hexutil.Big)(new(big.Int)),
		Data:     common.CopyBytes(p.Data),
	}

	if err := env.validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Transaction returns the unsigned legacy transaction described by the envelope.
func (e *Envelope) Transaction() (*types.Transaction, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	to := e.To
	return types.NewTx(&types.LegacyTx{
		Nonce:    e.Nonce.ToInt().Uint64(),
		GasPrice: new(big.Int).Set(e.GasPrice.ToInt()),
		Gas:      e.Gas.ToInt().Uint64(),
		To:       &to,
		Value:    new(big.Int).Set(e.Value.ToInt()),
		Data:     common.CopyBytes(e.Data),
	}), nil
}

// Sign signs the envelope with key using the EIP-155 scheme for its chain id.
// The key must control the envelope's from address.
func Sign(env *Envelope, key *ecdsa.PrivateKey) (*SignedTx, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrSigning)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrSigning)
	}

	if addr := crypto.PubkeyToAddress(key.PublicKey); addr != env.From {
		return nil, fmt.Errorf("%w: key address %s does not match from %s", ErrSigning, addr.Hex(), env.From.Hex())
	}

	tx, err := env.Transaction()
	if err != nil {
		return nil, err
	}

	signer := types.NewEIP155Signer(env.ChainID.ToInt())
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode transaction: %v", ErrSigning, err)
	}

	return &SignedTx{
		Raw:  hexutil.Encode(raw),
		Hash: signed.Hash(),
	}, nil
}

// ParseQuantity parses a non-negative integer given in decimal or 0x-prefixed hex.
func ParseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidQuantity)
	}

	var (
		n  *big.Int
		ok bool
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		n, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidQuantity, s)
	}
	return n, nil
}

func (e *Envelope) validate() error {
	if e.ChainID == nil || e.ChainID.ToInt().Sign() <= 0 {
		return fmt.Errorf("%w: chain id must be positive", ErrSigning)
	}
	if err := checkUint64("nonce", e.Nonce); err != nil {
		return err
	}
	if err := checkUint64("gas", e.Gas); err != nil {
		return err
	}
	if e.Gas.ToInt().Sign() == 0 {
		return fmt.Errorf("%w: gas must be greater than 0", ErrSigning)
	}
	if err := checkUint256("gasPrice", e.GasPrice); err != nil {
		return err
	}
	if err := checkUint256("value", e.Value); err != nil {
		return err
	}
	return nil
}

func checkUint64(field string, v *hexutil.Big) error {
	if v == nil {
		return fmt.Errorf("%w: %s is required", ErrSigning, field)
	}
	n := v.ToInt()
	if n.Sign() < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrSigning, field)
	}
	if !n.IsUint64() {
		return fmt.Errorf("%w: %s exceeds 64 bits", ErrSigning, field)
	}
	return nil
}

func checkUint256(field string, v *hexutil.Big) error {
	if v == nil {
		return fmt.Errorf("%w: %s is required", ErrSigning, field)
	}
	n := v.ToInt()
	if n.Sign() < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrSigning, field)
	}
	if _, overflow := uint256.FromBig(n); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", ErrSigning, field)
	}
	return nil
}

func toHexBig(n *big.Int) *hexutil.Big {
	if n == nil {
		return nil
	}
	return (*hexutil.Big)(new(big.Int).Set(n))
}

// Package calldata encodes contract method calls and decodes their results using a contract ABI.
package calldata

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Common errors.
var (
	ErrEncoding   = errors.New("encoding error")
	ErrInvalidABI = errors.New("invalid abi")
)

// Encoder packs arguments into call data and unpacks return data for one ABI.
// It is read-only after construction and safe for concurrent use.
type Encoder struct {
	abi abi.ABI
}

// NewEncoder parses abiJSON, a JSON array of ABI entries.
func NewEncoder(abiJSON string) (*Encoder, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidABI, err)
	}
	return &Encoder{abi: parsed}, nil
}

// ABI returns the parsed ABI.
func (e *Encoder) ABI() abi.ABI {
	return e.abi
}

// Method returns the ABI definition of name.
func (e *Encoder) Method(name string) (abi.Method, error) {
	m, ok := e.abi.Methods[name]
	if !ok {
		return abi.Method{}, fmt.Errorf("%w: method %q not found in abi", ErrEncoding, name)
	}
	return m, nil
}

// Methods returns the sorted names of all callable methods.
func (e *Encoder) Methods() []string {
	names := make([]string, 0, len(e.abi.Methods))
	for name := range e.abi.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pack returns the 4-byte selector followed by the ABI encoding of args.
// Argument count and Go types are validated against the method signature.
func (e *Encoder) Pack(method string, args ...interface{}) ([]byte, error) {
	m, err := e.Method(method)
	if err != nil {
		return nil, err
	}

	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrEncoding, m.Sig, len(m.Inputs), len(args))
	}

	data, err := e.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncoding, m.Sig, err)
	}
	return data, nil
}

// Unpack decodes data according to the declared outputs of method.
// Values are returned in the order of the return tuple.
func (e *Encoder) Unpack(method string, data []byte) ([]interface{}, error) {
	m, err := e.Method(method)
	if err != nil {
		return nil, err
	}

	values, err := m.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncoding, m.Sig, err)
	}
	return values, nil
}

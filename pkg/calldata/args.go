package calldata

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseArgs converts textual arguments into the Go values the packer expects for method.
// Integers accept decimal or 0x-prefixed hex; arrays are given as JSON arrays.
func (e *Encoder) ParseArgs(method string, raw []string) ([]interface{}, error) {
	m, err := e.Method(method)
	if err != nil {
		return nil, err
	}

	if len(raw) != len(m.Inputs) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrEncoding, m.Sig, len(m.Inputs), len(raw))
	}

	args := make([]interface{}, len(raw))
	for i, input := range m.Inputs {
		v, err := ParseValue(input.Type, raw[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		args[i] = v
	}
	return args, nil
}

// ParseValue converts s into a Go value of the type abi uses for t.
func ParseValue(t abi.Type, s string) (interface{}, error) {
	s = strings.TrimSpace(s)

	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: invalid address %q", ErrEncoding, s)
		}
		return common.HexToAddress(s), nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid bool %q", ErrEncoding, s)
		}
		return b, nil

	case abi.StringTy:
		return s, nil

	case abi.BytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid bytes %q: %v", ErrEncoding, s, err)
		}
		return b, nil

	case abi.FixedBytesTy, abi.HashTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s %q: %v", ErrEncoding, t.String(), s, err)
		}
		typ := t.GetType()
		if len(b) != typ.Len() {
			return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrEncoding, t.String(), typ.Len(), len(b))
		}
		arr := reflect.New(typ).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.IntTy, abi.UintTy:
		n, err := parseInteger(s)
		if err != nil {
			return nil, err
		}
		return toIntType(t, n)

	case abi.SliceTy, abi.ArrayTy:
		return parseList(t, s)

	default:
		return nil, fmt.Errorf("%w: unsupported argument type %s", ErrEncoding, t.String())
	}
}

func parseInteger(s string) (*big.Int, error) {
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")

	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok || digits == "" {
		return nil, fmt.Errorf("%w: invalid integer %q", ErrEncoding, s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func toIntType(t abi.Type, n *big.Int) (interface{}, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%w: %s out of range for %s", ErrEncoding, n, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%w: %s out of range for %s", ErrEncoding, n, t.String())
		}
	}

	typ := t.GetType()
	switch typ.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v := reflect.New(typ).Elem()
		v.SetUint(n.Uint64())
		return v.Interface(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := reflect.New(typ).Elem()
		v.SetInt(n.Int64())
		return v.Interface(), nil
	default:
		return n, nil
	}
}

func parseList(t abi.Type, s string) (interface{}, error) {
	var items []interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %s must be a JSON array: %v", ErrEncoding, t.String(), err)
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return nil, fmt.Errorf("%w: %s needs %d elements, got %d", ErrEncoding, t.String(), t.Size, len(items))
	}

	typ := t.GetType()
	var list reflect.Value
	if t.T == abi.ArrayTy {
		list = reflect.New(typ).Elem()
	} else {
		list = reflect.MakeSlice(typ, len(items), len(items))
	}

	for i, item := range items {
		var text string
		switch v := item.(type) {
		case string:
			text = v
		case json.Number:
			text = v.String()
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: element %d: %v", ErrEncoding, i, err)
			}
			text = string(raw)
		}

		v, err := ParseValue(*t.Elem, text)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		list.Index(i).Set(reflect.ValueOf(v))
	}

	return list.Interface(), nil
}

package calldata

import (
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeOf(v interface{}) reflect.Type {
	return reflect.TypeOf(v)
}

func mustType(t *testing.T, name string) abi.Type {
	typ, err := abi.NewType(name, "", nil)
	require.NoError(t, err)
	return typ
}

func TestParseArgs_Transfer(t *testing.T) {
	enc := newTestEncoder(t)

	args, err := enc.ParseArgs("transfer", []string{recipient.Hex(), "20000000000000000000"})
	require.NoError(t, err)
	require.Len(t, args, 2)

	assert.Equal(t, recipient, args[0])
	expected, _ := new(big.Int).SetString("20000000000000000000", 10)
	assert.Equal(t, expected, args[1])

	// Parsed arguments pack without further conversion
	_, err = enc.Pack("transfer", args...)
	assert.NoError(t, err)
}

func TestParseArgs_MixedTypes(t *testing.T) {
	enc := newTestEncoder(t)

	tag := "0xab" + strings.Repeat("00", 31)
	args, err := enc.ParseArgs("configure", []string{"true", "18", "-42", tag, "0xdeadbeef", "hello"})
	require.NoError(t, err)

	assert.Equal(t, true, args[0])
	assert.Equal(t, uint8(18), args[1])
	assert.Equal(t, int64(-42), args[2])

	var want [32]byte
	want[0] = 0xab
	assert.Equal(t, want, args[3])
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, args[4])
	assert.Equal(t, "hello", args[5])

	_, err = enc.Pack("configure", args...)
	assert.NoError(t, err)
}

func TestParseArgs_Lists(t *testing.T) {
	enc := newTestEncoder(t)

	args, err := enc.ParseArgs("batch", []string{
		`["` + holder.Hex() + `","` + recipient.Hex() + `"]`,
		`[1, "0x10"]`,
	})
	require.NoError(t, err)

	assert.Equal(t, []common.Address{holder, recipient}, args[0])
	assert.Equal(t, [2]*big.Int{big.NewInt(1), big.NewInt(16)}, args[1])

	_, err = enc.Pack("batch", args...)
	assert.NoError(t, err)
}

func TestParseArgs_ArgumentCount(t *testing.T) {
	enc := newTestEncoder(t)

	_, err := enc.ParseArgs("transfer", []string{recipient.Hex()})
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = enc.ParseArgs("missing", nil)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestParseValue_Errors(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		input string
	}{
		{"bad address", "address", "0x1234"},
		{"bad bool", "bool", "maybe"},
		{"bad bytes", "bytes", "zz"},
		{"short bytes32", "bytes32", "0xab"},
		{"bad integer", "uint256", "12a"},
		{"negative uint", "uint256", "-1"},
		{"uint8 overflow", "uint8", "256"},
		{"int8 overflow", "int8", "128"},
		{"int8 underflow", "int8", "-129"},
		{"array length", "uint256[2]", "[1]"},
		{"not a list", "address[]", "0x00"},
		{"bad element", "uint8[]", `["300"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseValue(mustType(t, tt.typ), tt.input)
			assert.ErrorIs(t, err, ErrEncoding)
		})
	}
}

func TestParseValue_Integers(t *testing.T) {
	tests := []struct {
		typ   string
		input string
		want  interface{}
	}{
		{"uint8", "255", uint8(255)},
		{"uint16", "0xffff", uint16(65535)},
		{"uint32", "010", uint32(10)},
		{"uint64", "18446744073709551615", uint64(18446744073709551615)},
		{"int8", "-128", int8(-128)},
		{"int32", "0x7fffffff", int32(2147483647)},
		{"uint256", "0x64", big.NewInt(100)},
		{"int256", "-5", big.NewInt(-5)},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.input, func(t *testing.T) {
			v, err := ParseValue(mustType(t, tt.typ), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/ethcontract-go/pkg/rpctest"
)

const (
	testKey      = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testMnemonic = "test test test test test test test test test test test junk"
	tokenAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	tokenABI = `[
		{"type":"function","name":"balanceOf","stateMutability":"view",
		 "inputs":[{"name":"owner","type":"address"}],
		 "outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"transfer","stateMutability":"nonpayable",
		 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
		 "outputs":[{"name":"","type":"bool"}]}
	]`
)

var (
	account0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	account1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

type testEnv struct {
	node    *rpctest.Node
	url     string
	abiFile string
}

func setupEnv(t *testing.T) *testEnv {
	t.Setenv(envPrivateKey, "")

	node := rpctest.NewNode(big.NewInt(1337))
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	abiFile := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(abiFile, []byte(tokenABI), 0644))

	return &testEnv{node: node, url: srv.URL, abiFile: abiFile}
}

func (e *testEnv) contractArgs(args ...string) []string {
	base := []string{"--rpc", e.url, "--chain-id", "1337", "--address", tokenAddress, "--abi", e.abiFile, "--log-level", "error"}
	return append(base, args...)
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddress_Key(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "address", "--key", testKey)
	require.NoError(t, err)
	assert.Equal(t, account0.Hex()+"\n", out)
}

func TestAddress_EnvKey(t *testing.T) {
	setupEnv(t)
	t.Setenv(envPrivateKey, testKey)

	out, err := run(t, "address")
	require.NoError(t, err)
	assert.Equal(t, account0.Hex()+"\n", out)
}

func TestAddress_Mnemonic(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "address", "--mnemonic", testMnemonic, "--count", "2")
	require.NoError(t, err)
	assert.Equal(t, account0.Hex()+"\n"+account1.Hex()+"\n", out)
}

func TestAddress_Missing(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "address")
	assert.Error(t, err)
}

func TestAddress_InvalidKey(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "address", "--key", "0x1234")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "--chain-id", "0", "address", "--key", testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chainId")
}

func TestRead(t *testing.T) {
	env := setupEnv(t)
	env.node.SetCallResult(common.FromHex("0x70a08231"), common.LeftPadBytes(big.NewInt(100).Bytes(), 32))

	out, err := run(t, env.contractArgs("read", "balanceOf", account0.Hex())...)
	require.NoError(t, err)
	assert.Equal(t, "100\n", out)
}

func TestRead_MissingContract(t *testing.T) {
	env := setupEnv(t)

	_, err := run(t, "--rpc", env.url, "read", "balanceOf", account0.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--address")
}

func TestRead_BadArgument(t *testing.T) {
	env := setupEnv(t)

	_, err := run(t, env.contractArgs("read", "balanceOf", "not-an-address")...)
	assert.Error(t, err)
	assert.Empty(t, env.node.Requests())
}

func TestRead_ConfigFile(t *testing.T) {
	env := setupEnv(t)
	env.node.SetCallResult(common.FromHex("0x70a08231"), common.LeftPadBytes(big.NewInt(7).Bytes(), 32))

	cfg := map[string]interface{}{
		"rpc":      env.url,
		"chainId":  1337,
		"address":  tokenAddress,
		"abiFile":  env.abiFile,
		"logLevel": "error",
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	cfgFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgFile, raw, 0644))

	out, err := run(t, "--config", cfgFile, "read", "balanceOf", account0.Hex())
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestWrite(t *testing.T) {
	env := setupEnv(t)
	env.node.Pool().SetNonce(account0, 5)

	out, err := run(t, env.contractArgs("write", "transfer", account1.Hex(), "1000",
		"--key", testKey, "--gas-price", "20000000000")...)
	require.NoError(t, err)

	txs := env.node.Pool().Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, txs[0].Hash().Hex()+"\n", out)
	assert.Equal(t, uint64(5), txs[0].Nonce())
	assert.Equal(t, uint64(800000), txs[0].Gas())
	assert.Equal(t, big.NewInt(20000000000), txs[0].GasPrice())
}

func TestWrite_GasLimitAndMnemonicFromConfig(t *testing.T) {
	env := setupEnv(t)

	cfg := map[string]interface{}{
		"mnemonic": testMnemonic,
		"gasPrice": "0x3b9aca00",
		"gasLimit": 100000,
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	cfgFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgFile, raw, 0644))

	args := append([]string{"--config", cfgFile}, env.contractArgs("write", "transfer", account1.Hex(), "1", "--gas-limit", "0xea60")...)
	_, err = run(t, args...)
	require.NoError(t, err)

	txs := env.node.Pool().PendingFrom(account0)
	require.Len(t, txs, 1)
	assert.Equal(t, uint64(60000), txs[0].Gas())
	assert.Equal(t, big.NewInt(1000000000), txs[0].GasPrice())
}

func TestWrite_MissingGasPrice(t *testing.T) {
	env := setupEnv(t)

	_, err := run(t, env.contractArgs("write", "transfer", account1.Hex(), "1", "--key", testKey)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--gas-price")
	assert.Equal(t, 0, env.node.Pool().Count())
}

func TestWrite_MissingKey(t *testing.T) {
	env := setupEnv(t)

	_, err := run(t, env.contractArgs("write", "transfer", account1.Hex(), "1", "--gas-price", "1")...)
	assert.Error(t, err)
	assert.Equal(t, 0, env.node.RequestCount("eth_getTransactionCount"))
}

func TestSign(t *testing.T) {
	env := setupEnv(t)
	env.node.Pool().SetNonce(account0, 2)

	out, err := run(t, env.contractArgs("sign", "transfer", account1.Hex(), "1000",
		"--key", testKey, "--gas-price", "20000000000")...)
	require.NoError(t, err)

	var result struct {
		Envelope map[string]interface{} `json:"envelope"`
		Raw      string                 `json:"raw"`
		Hash     string                 `json:"hash"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	assert.Equal(t, "0x2", result.Envelope["nonce"])
	assert.Equal(t, "0xc3500", result.Envelope["gas"])
	assert.Equal(t, "0x0", result.Envelope["value"])
	assert.Equal(t, "0x539", result.Envelope["chainId"])
	assert.True(t, strings.HasPrefix(result.Raw, "0x"))
	assert.Len(t, result.Hash, 66)

	// Nothing was broadcast
	assert.Equal(t, 0, env.node.Pool().Count())
}

func TestFormatValue(t *testing.T) {
	var word [4]byte
	copy(word[:], []byte{0xde, 0xad, 0xbe, 0xef})

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"big int", big.NewInt(100), "100"},
		{"address", account0, account0.Hex()},
		{"bytes", []byte{0x01, 0x02}, "0x0102"},
		{"fixed bytes", word, "0xdeadbeef"},
		{"string", "Stable Token", "Stable Token"},
		{"bool", true, "true"},
		{"uint8", uint8(18), "18"},
		{"address list", []common.Address{account1}, `["` + strings.ToLower(account1.Hex()) + `"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

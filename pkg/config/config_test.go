package config

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "test test test test test test test test test test test junk"

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPC)
	assert.Equal(t, uint64(31337), cfg.ChainID)
	assert.Equal(t, time.Second, cfg.TimeoutDuration())
	assert.Equal(t, uint64(800000), cfg.GasLimit)
	assert.Equal(t, "m/44'/60'/0'/0/0", cfg.DerivationPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Mnemonic)
	assert.Empty(t, cfg.GasPrice)
	assert.False(t, cfg.HasContract())
}

func TestConfigValidation_Valid(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestConfigValidation_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"empty rpc", func(c *Config) { c.RPC = "" }, "rpc"},
		{"zero chain id", func(c *Config) { c.ChainID = 0 }, "chainId"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"bad address", func(c *Config) { c.Address = "0x1234" }, "address"},
		{"zero gas limit", func(c *Config) { c.GasLimit = 0 }, "gasLimit"},
		{"negative gas price", func(c *Config) { c.GasPrice = "-1" }, "gasPrice"},
		{"bad gas price", func(c *Config) { c.GasPrice = "20 gwei" }, "gasPrice"},
		{"bad mnemonic", func(c *Config) { c.Mnemonic = "invalid mnemonic" }, "mnemonic"},
		{"bad derivation path", func(c *Config) { c.DerivationPath = "m/44'/x" }, "derivationPath"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "logLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfigValidation_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.ChainID = 0
	cfg.GasLimit = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chainId")
	assert.Contains(t, err.Error(), "gasLimit")
	assert.Contains(t, err.Error(), "; ")
}

func TestConfigValidation_Mnemonic(t *testing.T) {
	cfg := Default()
	cfg.Mnemonic = testMnemonic

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{
		"rpc": "http://node.internal:8545",
		"chainId": 1337,
		"address": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"abiFile": "token.json",
		"timeout": "2500ms",
		"gasPrice": "20000000000"
	}`

	err := os.WriteFile(configPath, []byte(configJSON), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, "http://node.internal:8545", cfg.RPC)
	assert.Equal(t, uint64(1337), cfg.ChainID)
	assert.Equal(t, 2500*time.Millisecond, cfg.TimeoutDuration())
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), cfg.ContractAddress())
	assert.True(t, cfg.HasContract())

	price, err := cfg.GasPriceWei()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20000000000), price)

	// Defaults should be applied for missing fields
	assert.Equal(t, uint64(800000), cfg.GasLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_NumericTimeout(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"timeout": 3}`), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.TimeoutDuration())
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.json")
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	err := os.WriteFile(configPath, []byte("invalid json"), 0644)
	require.NoError(t, err)

	_, err = LoadFromFile(configPath)
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidTimeout(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"timeout": "soon"}`), 0644))

	_, err := LoadFromFile(configPath)
	assert.Error(t, err)
}

func TestDuration_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(raw))
}

func TestConfigCopy(t *testing.T) {
	cfg := Default()
	cfg.ChainID = 12345

	copied := cfg.Copy()

	// Modify original
	cfg.ChainID = 99999

	// Copy should be unchanged
	assert.Equal(t, uint64(12345), copied.ChainID)
}

func TestMergeWithDefaults(t *testing.T) {
	partial := &Config{
		ChainID: 12345,
		Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}

	merged := MergeWithDefaults(partial)

	assert.Equal(t, uint64(12345), merged.ChainID)
	assert.Equal(t, partial.Address, merged.Address)
	// Defaults applied
	assert.Equal(t, DefaultRPC, merged.RPC)
	assert.Equal(t, DefaultGasLimit, merged.GasLimit)
	assert.Equal(t, Duration(time.Second), merged.Timeout)
}

func TestConversions(t *testing.T) {
	cfg := Default()

	assert.Equal(t, big.NewInt(31337), cfg.ChainIDBig())
	assert.Equal(t, big.NewInt(800000), cfg.GasLimitBig())

	price, err := cfg.GasPriceWei()
	require.NoError(t, err)
	assert.Nil(t, price)

	cfg.GasPrice = "0x4a817c800"
	price, err = cfg.GasPriceWei()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20000000000), price)
}

func TestLoadABI(t *testing.T) {
	dir := t.TempDir()
	abiJSON := `[{"type":"function","name":"name","inputs":[],"outputs":[{"name":"","type":"string"}]}]`

	bare := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(bare, []byte("\n"+abiJSON+"\n"), 0644))

	got, err := LoadABI(bare)
	require.NoError(t, err)
	assert.Equal(t, abiJSON, got)

	artifact := filepath.Join(dir, "artifact.json")
	require.NoError(t, os.WriteFile(artifact, []byte(`{"contractName":"Token","abi":`+abiJSON+`,"bytecode":"0x"}`), 0644))

	got, err = LoadABI(artifact)
	require.NoError(t, err)
	assert.JSONEq(t, abiJSON, got)
}

func TestLoadABI_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadABI(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	noABI := filepath.Join(dir, "noabi.json")
	require.NoError(t, os.WriteFile(noABI, []byte(`{"bytecode":"0x"}`), 0644))
	_, err = LoadABI(noABI)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`not json`), 0644))
	_, err = LoadABI(garbage)
	assert.Error(t, err)
}

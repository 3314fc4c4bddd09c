// Package config provides configuration management for ethcontract.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap/zapcore"

	"github.com/stable-net/ethcontract-go/pkg/gateway"
	"github.com/stable-net/ethcontract-go/pkg/keys"
	"github.com/stable-net/ethcontract-go/pkg/txbuilder"
)

// Default values.
var (
	DefaultRPC            = "http://127.0.0.1:8545"
	DefaultChainID        = uint64(31337)
	DefaultGasLimit       = uint64(txbuilder.DefaultGasLimit)
	DefaultTimeout        = gateway.DefaultTimeout
	DefaultDerivationPath = keys.DefaultDerivationPath
	DefaultLogLevel       = "info"
)

// Duration is a time.Duration that decodes from a Go duration string ("1500ms")
// or a plain number of seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}

	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config defines the client configuration.
type Config struct {
	// Node configuration
	RPC     string   `json:"rpc"`
	ChainID uint64   `json:"chainId"`
	Timeout Duration `json:"timeout"`

	// Contract configuration
	Address string `json:"address"`
	ABIFile string `json:"abiFile"`

	// Transaction configuration
	GasLimit uint64 `json:"gasLimit"`
	GasPrice string `json:"gasPrice,omitempty"` // decimal or 0x hex wei

	// Account configuration (optional)
	Mnemonic       string `json:"mnemonic,omitempty"`
	DerivationPath string `json:"derivationPath"`

	LogLevel string `json:"logLevel"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		RPC:            DefaultRPC,
		ChainID:        DefaultChainID,
		Timeout:        Duration(DefaultTimeout),
		GasLimit:       DefaultGasLimit,
		DerivationPath: DefaultDerivationPath,
		LogLevel:       DefaultLogLevel,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.RPC == "" {
		errs = append(errs, "rpc cannot be empty")
	}

	if c.ChainID == 0 {
		errs = append(errs, "chainId must be greater than 0")
	}

	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be greater than 0")
	}

	if c.Address != "" && !common.IsHexAddress(c.Address) {
		errs = append(errs, "address must be a 20-byte hex address")
	}

	if c.GasLimit == 0 {
		errs = append(errs, "gasLimit must be greater than 0")
	}

	if c.GasPrice != "" {
		if _, err := txbuilder.ParseQuantity(c.GasPrice); err != nil {
			errs = append(errs, "gasPrice must be a non-negative integer")
		}
	}

	if c.Mnemonic != "" && !bip39.IsMnemonicValid(c.Mnemonic) {
		errs = append(errs, "mnemonic is invalid")
	}

	if _, err := accounts.ParseDerivationPath(c.DerivationPath); err != nil {
		errs = append(errs, "derivationPath is invalid")
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, "logLevel must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return MergeWithDefaults(&cfg), nil
}

// MergeWithDefaults merges partial config with default values.
func MergeWithDefaults(partial *Config) *Config {
	def := Default()

	if partial.RPC != "" {
		def.RPC = partial.RPC
	}
	if partial.ChainID != 0 {
		def.ChainID = partial.ChainID
	}
	if partial.Timeout != 0 {
		def.Timeout = partial.Timeout
	}
	if partial.GasLimit != 0 {
		def.GasLimit = partial.GasLimit
	}
	if partial.DerivationPath != "" {
		def.DerivationPath = partial.DerivationPath
	}
	if partial.LogLevel != "" {
		def.LogLevel = partial.LogLevel
	}
	def.Address = partial.Address
	def.ABIFile = partial.ABIFile
	def.GasPrice = partial.GasPrice
	def.Mnemonic = partial.Mnemonic

	return def
}

// Copy creates a copy of the configuration.
func (c *Config) Copy() *Config {
	copied := *c
	return &copied
}

// HasContract returns true if a contract address and ABI file are configured.
func (c *Config) HasContract() bool {
	return c.Address != "" && c.ABIFile != ""
}

// ContractAddress returns the configured contract address.
func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Address)
}

// ChainIDBig returns the chain id as a big integer.
func (c *Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// TimeoutDuration returns the request timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout)
}

// GasLimitBig returns the gas limit as a big integer.
func (c *Config) GasLimitBig() *big.Int {
	return new(big.Int).SetUint64(c.GasLimit)
}

// GasPriceWei parses the configured gas price. It returns nil when none is set.
func (c *Config) GasPriceWei() (*big.Int, error) {
	if c.GasPrice == "" {
		return nil, nil
	}
	return txbuilder.ParseQuantity(c.GasPrice)
}

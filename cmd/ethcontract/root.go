package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stable-net/ethcontract-go/pkg/config"
	"github.com/stable-net/ethcontract-go/pkg/contract"
)

// envPrivateKey is consulted when --key is not given.
const envPrivateKey = "ETHCONTRACT_PRIVATE_KEY"

// globalFlags holds the persistent flags shared by all commands.
type globalFlags struct {
	configFile string
	rpc        string
	chainID    uint64
	address    string
	abiFile    string
	timeout    time.Duration
	logLevel   string
}

type app struct {
	flags  globalFlags
	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "ethcontract",
		Short: "Read from and write to a deployed smart contract",
		Long: `ethcontract binds one contract (address + ABI) on an Ethereum JSON-RPC node.

Examples:
  ethcontract --abi token.json --address 0x5FbD... read balanceOf 0xf39F...
  ethcontract --abi token.json --address 0x5FbD... write transfer 0x7099... 1000 --gas-price 20000000000
  ethcontract address --mnemonic "test test ... junk"`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "JSON config file")
	pf.StringVar(&a.flags.rpc, "rpc", config.DefaultRPC, "node JSON-RPC endpoint")
	pf.Uint64Var(&a.flags.chainID, "chain-id", config.DefaultChainID, "chain id used for signing")
	pf.StringVar(&a.flags.address, "address", "", "contract address")
	pf.StringVar(&a.flags.abiFile, "abi", "", "contract ABI file (bare ABI array or build artifact)")
	pf.DurationVar(&a.flags.timeout, "timeout", config.DefaultTimeout, "HTTP request timeout")
	pf.StringVar(&a.flags.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newAddressCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newSignCmd(a),
	)
	return root
}

// init loads the config file and applies flag overrides.
func (a *app) init(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.flags.configFile != "" {
		loaded, err := config.LoadFromFile(a.flags.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("rpc") {
		cfg.RPC = a.flags.rpc
	}
	if flags.Changed("chain-id") {
		cfg.ChainID = a.flags.chainID
	}
	if flags.Changed("address") {
		cfg.Address = a.flags.address
	}
	if flags.Changed("abi") {
		cfg.ABIFile = a.flags.abiFile
	}
	if flags.Changed("timeout") {
		cfg.Timeout = config.Duration(a.flags.timeout)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openContract dials the configured node and binds the configured contract.
func (a *app) openContract(ctx context.Context) (*contract.Contract, error) {
	if !a.cfg.HasContract() {
		return nil, fmt.Errorf("contract address and abi file are required (--address, --abi)")
	}

	abiJSON, err := config.LoadABI(a.cfg.ABIFile)
	if err != nil {
		return nil, err
	}

	return contract.Dial(ctx, a.cfg.RPC, a.cfg.ChainIDBig(), a.cfg.ContractAddress(), abiJSON,
		a.cfg.TimeoutDuration(), contract.WithLogger(a.logger))
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

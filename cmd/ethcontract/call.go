package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/stable-net/ethcontract-go/pkg/contract"
	"github.com/stable-net/ethcontract-go/pkg/keys"
	"github.com/stable-net/ethcontract-go/pkg/txbuilder"
)

// txFlags are the flags shared by write and sign.
type txFlags struct {
	key      string
	gasPrice string
	gasLimit string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.key, "key", "", "hex private key (default $"+envPrivateKey+" or the configured mnemonic)")
	cmd.Flags().StringVar(&f.gasPrice, "gas-price", "", "gas price in wei, decimal or 0x hex (default from config)")
	cmd.Flags().StringVar(&f.gasLimit, "gas-limit", "", "gas limit (default from config, 800000)")
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <method> [args...]",
		Short: "Call a constant method and print its outputs",
		Long: `Call a constant method and print one decoded output per line.

Integers accept decimal or 0x hex; array arguments are JSON arrays.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openContract(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			method := args[0]
			callArgs, err := c.Encoder().ParseArgs(method, args[1:])
			if err != nil {
				return err
			}

			values, err := c.Read(cmd.Context(), method, callArgs...)
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Fprintln(a.out, formatValue(v))
			}
			return nil
		},
	}
}

func newWriteCmd(a *app) *cobra.Command {
	var f txFlags

	cmd := &cobra.Command{
		Use:   "write <method> [args...]",
		Short: "Sign and broadcast a transaction calling method",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openContract(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			req, err := a.prepareTx(c, &f, args)
			if err != nil {
				return err
			}

			hash, err := c.Write(cmd.Context(), req.method, req.args, req.key, req.gasPrice, contract.WithGasLimit(req.gasLimit))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, hash.Hex())
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newSignCmd(a *app) *cobra.Command {
	var f txFlags

	cmd := &cobra.Command{
		Use:   "sign <method> [args...]",
		Short: "Sign a transaction calling method without broadcasting it",
		Long: `Sign a transaction calling method and print the envelope, raw transaction and hash as JSON.
The nonce is still read from the node.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openContract(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			req, err := a.prepareTx(c, &f, args)
			if err != nil {
				return err
			}

			env, signed, err := c.SignWrite(cmd.Context(), req.method, req.args, req.key, req.gasPrice, contract.WithGasLimit(req.gasLimit))
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(struct {
				Envelope *txbuilder.Envelope `json:"envelope"`
				Raw      string              `json:"raw"`
				Hash     common.Hash         `json:"hash"`
			}{env, signed.Raw, signed.Hash}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(out))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

type txRequest struct {
	method   string
	args     []interface{}
	key      string
	gasPrice *big.Int
	gasLimit *big.Int
}

// prepareTx resolves the signing key, gas settings and typed arguments for a write.
func (a *app) prepareTx(c *contract.Contract, f *txFlags, args []string) (*txRequest, error) {
	req := &txRequest{method: args[0]}

	callArgs, err := c.Encoder().ParseArgs(req.method, args[1:])
	if err != nil {
		return nil, err
	}
	req.args = callArgs

	req.key, err = a.resolveKey(f.key)
	if err != nil {
		return nil, err
	}

	if f.gasPrice != "" {
		req.gasPrice, err = txbuilder.ParseQuantity(f.gasPrice)
	} else {
		req.gasPrice, err = a.cfg.GasPriceWei()
	}
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	if req.gasPrice == nil {
		return nil, fmt.Errorf("--gas-price is required")
	}

	req.gasLimit = a.cfg.GasLimitBig()
	if f.gasLimit != "" {
		req.gasLimit, err = txbuilder.ParseQuantity(f.gasLimit)
		if err != nil {
			return nil, fmt.Errorf("gas limit: %w", err)
		}
	}

	return req, nil
}

// resolveKey picks the signing key from the flag, the environment or the configured mnemonic.
func (a *app) resolveKey(flagKey string) (string, error) {
	if flagKey != "" {
		return flagKey, nil
	}
	if key := os.Getenv(envPrivateKey); key != "" {
		return key, nil
	}
	if a.cfg.Mnemonic != "" {
		acc, err := keys.FromMnemonic(a.cfg.Mnemonic, "", a.cfg.DerivationPath)
		if err != nil {
			return "", err
		}
		return acc.HexKey(), nil
	}
	return "", fmt.Errorf("a private key is required (--key, $%s or mnemonic in config)", envPrivateKey)
}

// formatValue renders a decoded ABI value for terminal output.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	case string:
		return x
	case bool:
		return fmt.Sprint(x)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return hexutil.Encode(b)
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprint(v)
	}

	if out, err := json.Marshal(v); err == nil {
		return string(out)
	}
	return fmt.Sprint(v)
}

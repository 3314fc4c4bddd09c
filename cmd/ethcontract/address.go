package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stable-net/ethcontract-go/pkg/keys"
)

func newAddressCmd(a *app) *cobra.Command {
	var (
		key        string
		mnemonic   string
		passphrase string
		path       string
		count      int
	)

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address controlled by a private key or mnemonic",
		Long: `Print the address for a private key (--key or $ETHCONTRACT_PRIVATE_KEY)
or for accounts derived from a BIP-39 mnemonic along a BIP-44 path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mnemonic == "" {
				mnemonic = a.cfg.Mnemonic
			}
			if !cmd.Flags().Changed("path") {
				path = a.cfg.DerivationPath
			}

			if key == "" && mnemonic == "" {
				key = os.Getenv(envPrivateKey)
			}

			switch {
			case key != "":
				addr, err := keys.DeriveAddress(key)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, addr.Hex())
				return nil

			case mnemonic != "":
				accs, err := keys.DeriveAccounts(mnemonic, passphrase, path, count)
				if err != nil {
					return err
				}
				for _, acc := range accs {
					fmt.Fprintln(a.out, acc.Address.Hex())
				}
				return nil

			default:
				return fmt.Errorf("one of --key, --mnemonic or $%s is required", envPrivateKey)
			}
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "hex private key")
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "BIP-39 mnemonic")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "BIP-39 passphrase")
	cmd.Flags().StringVar(&path, "path", keys.DefaultDerivationPath, "BIP-44 derivation path of the first account")
	cmd.Flags().IntVar(&count, "count", 1, "number of sequential accounts to derive")
	return cmd
}

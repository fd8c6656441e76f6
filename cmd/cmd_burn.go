package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/internal/openassets"
	"github.com/spf13/cobra"
)

func newBurnCommand() *cobra.Command {
	var (
		utxosFile    string
		assetID      string
		changeScript string
		amount       uint64
		fees         int64
	)

	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Build an unsigned burn transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			unspent, err := loadUnspentOutputs(utxosFile)
			if err != nil {
				return err
			}
			change, err := resolveScript(changeScript)
			if err != nil {
				return err
			}
			parsedAssetID, err := parseAssetIDHex(assetID)
			if err != nil {
				return err
			}

			params := openassets.TransferParams{
				UnspentOutputs: unspent,
				ChangeScript:   change,
				Amount:         amount,
			}

			tx, err := newBuilder().Burn(parsedAssetID, params, openassets.Fees(fees))
			if err != nil {
				return errors.Wrap(err, "cannot build burn transaction")
			}
			return printTx(tx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&utxosFile, "utxos-file", "", "path to a JSON file of candidate unspent outputs")
	flags.StringVar(&assetID, "asset-id", "", "hex-encoded asset id to burn")
	flags.StringVar(&changeScript, "change", "", "script or address to receive any unburned asset units and bitcoin change")
	flags.Uint64Var(&amount, "amount", 0, "units to burn")
	flags.Int64Var(&fees, "fees", 0, "satoshi fee to pay")

	return cmd
}

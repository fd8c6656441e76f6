package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/internal/openassets"
	"github.com/spf13/cobra"
)

func newTransferCommand() *cobra.Command {
	var (
		utxosFile    string
		assetID      string
		toScript     string
		changeScript string
		amount       uint64
		fees         int64
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Build an unsigned transfer transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			unspent, err := loadUnspentOutputs(utxosFile)
			if err != nil {
				return err
			}
			to, err := resolveScript(toScript)
			if err != nil {
				return err
			}
			change, err := resolveScript(changeScript)
			if err != nil {
				return err
			}
			if to == nil {
				return errors.New("--to is required")
			}

			params := openassets.TransferParams{
				UnspentOutputs: unspent,
				ToScript:       to,
				ChangeScript:   change,
				Amount:         amount,
			}

			builder := newBuilder()

			if assetID == "" {
				built, err := builder.TransferBitcoin(params, openassets.Fees(fees))
				if err != nil {
					return errors.Wrap(err, "cannot build bitcoin transfer transaction")
				}
				return printTx(built)
			}

			parsedAssetID, err := parseAssetIDHex(assetID)
			if err != nil {
				return err
			}
			built, err := builder.TransferAssets(parsedAssetID, params, nil, openassets.Fees(fees))
			if err != nil {
				return errors.Wrap(err, "cannot build asset transfer transaction")
			}
			return printTx(built)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&utxosFile, "utxos-file", "", "path to a JSON file of candidate unspent outputs")
	flags.StringVar(&assetID, "asset-id", "", "hex-encoded asset id; omit for a pure bitcoin transfer")
	flags.StringVar(&toScript, "to", "", "script or address to receive the transfer")
	flags.StringVar(&changeScript, "change", "", "script or address to receive change")
	flags.Uint64Var(&amount, "amount", 0, "units (asset transfer) or satoshis (bitcoin transfer) to send")
	flags.Int64Var(&fees, "fees", 0, "satoshi fee to pay")

	return cmd
}

package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/internal/openassets"
	"github.com/spf13/cobra"
)

func newSwapCommand() *cobra.Command {
	var (
		aUtxosFile, aTo, aChange, aAssetID string
		aAmount                            uint64
		aFees                              int64

		bUtxosFile, bTo, bChange, bAssetID string
		bAmount                            uint64
		bFees                              int64
	)

	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Build an unsigned swap transaction between two legs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			legA, err := loadSwapLeg(aUtxosFile, aTo, aChange, aAmount)
			if err != nil {
				return err
			}
			legB, err := loadSwapLeg(bUtxosFile, bTo, bChange, bAmount)
			if err != nil {
				return err
			}

			builder := newBuilder()

			if aAssetID == "" {
				assetID, err := parseAssetIDHex(bAssetID)
				if err != nil {
					return err
				}
				tx, err := builder.BtcAssetSwap(legA, legB, assetID, openassets.Fees(aFees), openassets.Fees(bFees))
				if err != nil {
					return errors.Wrap(err, "cannot build bitcoin-asset swap transaction")
				}
				return printTx(tx)
			}
			if bAssetID == "" {
				assetID, err := parseAssetIDHex(aAssetID)
				if err != nil {
					return err
				}
				tx, err := builder.BtcAssetSwap(legB, legA, assetID, openassets.Fees(bFees), openassets.Fees(aFees))
				if err != nil {
					return errors.Wrap(err, "cannot build bitcoin-asset swap transaction")
				}
				return printTx(tx)
			}

			assetIDA, err := parseAssetIDHex(aAssetID)
			if err != nil {
				return err
			}
			assetIDB, err := parseAssetIDHex(bAssetID)
			if err != nil {
				return err
			}
			tx, err := builder.AssetAssetSwap(legA, assetIDA, openassets.Fees(aFees), legB, assetIDB, openassets.Fees(bFees))
			if err != nil {
				return errors.Wrap(err, "cannot build asset-asset swap transaction")
			}
			return printTx(tx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&aUtxosFile, "a-utxos-file", "", "path to a JSON file of leg A's candidate unspent outputs")
	flags.StringVar(&aTo, "a-to", "", "script or address leg A receives its counterpart's payment at")
	flags.StringVar(&aChange, "a-change", "", "script or address leg A receives change at")
	flags.StringVar(&aAssetID, "a-asset-id", "", "hex-encoded asset id leg A contributes; omit if leg A contributes bitcoin")
	flags.Uint64Var(&aAmount, "a-amount", 0, "units or satoshis leg A contributes")
	flags.Int64Var(&aFees, "a-fees", 0, "satoshi fee leg A pays")

	flags.StringVar(&bUtxosFile, "b-utxos-file", "", "path to a JSON file of leg B's candidate unspent outputs")
	flags.StringVar(&bTo, "b-to", "", "script or address leg B receives its counterpart's payment at")
	flags.StringVar(&bChange, "b-change", "", "script or address leg B receives change at")
	flags.StringVar(&bAssetID, "b-asset-id", "", "hex-encoded asset id leg B contributes; omit if leg B contributes bitcoin")
	flags.Uint64Var(&bAmount, "b-amount", 0, "units or satoshis leg B contributes")
	flags.Int64Var(&bFees, "b-fees", 0, "satoshi fee leg B pays")

	return cmd
}

func loadSwapLeg(utxosFile, to, change string, amount uint64) (openassets.SwapLeg, error) {
	unspent, err := loadUnspentOutputs(utxosFile)
	if err != nil {
		return openassets.SwapLeg{}, err
	}
	toScript, err := resolveScript(to)
	if err != nil {
		return openassets.SwapLeg{}, err
	}
	changeScript, err := resolveScript(change)
	if err != nil {
		return openassets.SwapLeg{}, err
	}
	if toScript == nil {
		return openassets.SwapLeg{}, errors.New("each swap leg requires a to script")
	}
	return openassets.SwapLeg{
		UnspentOutputs: unspent,
		ToScript:       toScript,
		ChangeScript:   changeScript,
		Amount:         amount,
	}, nil
}

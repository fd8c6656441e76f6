package cmd

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/internal/config"
	"github.com/openassets-go/openassets/internal/openassets"
	"github.com/spf13/cobra"
)

func newColorCommand() *cobra.Command {
	var rawTx string

	cmd := &cobra.Command{
		Use:   "color",
		Short: "Color every output of a raw transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return colorHandler(cmd, rawTx)
		},
	}
	cmd.Flags().StringVar(&rawTx, "raw-transaction", "", "hex-encoded raw transaction to color")
	return cmd
}

func colorHandler(cmd *cobra.Command, rawTx string) error {
	if rawTx == "" {
		return errors.New("--raw-transaction is required")
	}
	raw, err := hex.DecodeString(rawTx)
	if err != nil {
		return errors.Wrap(err, "raw-transaction is not valid hex")
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return errors.Wrap(err, "raw-transaction is not a valid transaction")
	}

	conf := config.Load()
	client, err := newRPCClient(cmd.Context(), conf)
	if err != nil {
		return err
	}
	engine := openassets.NewEngine(openassets.NewRPCFetcher(client), openassets.NewMemoryCache())

	colored, err := engine.ColorRawTransaction(cmd.Context(), tx)
	if err != nil {
		return err
	}

	for i, out := range colored {
		if out.HasAsset {
			fmt.Printf("output %d: value=%d category=%s asset_id=%s quantity=%d\n",
				i, out.Value, out.Category, out.AssetID, out.Quantity)
		} else {
			fmt.Printf("output %d: value=%d category=%s\n", i, out.Value, out.Category)
		}
	}
	return nil
}

package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/internal/openassets"
	"github.com/spf13/cobra"
)

func newIssueCommand() *cobra.Command {
	var (
		utxosFile      string
		issuanceScript string
		toScript       string
		changeScript   string
		amount         uint64
		metadata       string
		fees           int64
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Build an unsigned issuance transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			unspent, err := loadUnspentOutputs(utxosFile)
			if err != nil {
				return err
			}
			issuance, err := resolveScript(issuanceScript)
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
			if to == nil || issuance == nil {
				return errors.New("--to and --issuance-script are required")
			}

			tx, err := newBuilder().Issue(openassets.IssuanceParams{
				UnspentOutputs: unspent,
				IssuanceScript: issuance,
				ToScript:       to,
				ChangeScript:   change,
				Amount:         amount,
			}, []byte(metadata), openassets.Fees(fees))
			if err != nil {
				return errors.Wrap(err, "cannot build issuance transaction")
			}
			return printTx(tx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&utxosFile, "utxos-file", "", "path to a JSON file of candidate unspent outputs")
	flags.StringVar(&issuanceScript, "issuance-script", "", "script or address the new asset id is bound to")
	flags.StringVar(&toScript, "to", "", "script or address to receive the issued asset")
	flags.StringVar(&changeScript, "change", "", "script or address to receive bitcoin change")
	flags.Uint64Var(&amount, "amount", 0, "number of units to issue")
	flags.StringVar(&metadata, "metadata", "", "marker metadata string")
	flags.Int64Var(&fees, "fees", 0, "satoshi fee to pay")

	return cmd
}

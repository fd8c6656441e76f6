package cmd

import (
	"context"
	"log/slog"

	"github.com/openassets-go/openassets/internal/config"
	"github.com/openassets-go/openassets/pkg/logger"
	"github.com/openassets-go/openassets/pkg/logger/slogx"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:  "openassets",
	Long: "Color Bitcoin transaction outputs and build unsigned Open Assets transactions.",
}

func init() {
	var configFile string

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, e.g. `./config.yaml`")
	flags.String("network", "mainnet", "network to connect to, e.g. `mainnet` or `testnet`")

	config.BindPFlag("network", flags.Lookup("network"))

	cobra.OnInitialize(func() {
		conf := config.Parse(configFile)
		if err := logger.Init(conf.Logger); err != nil {
			logger.Panic("Failed to initialize logger", slogx.Error(err), slog.Any("config", conf.Logger))
		}
	})

	rootCmd.AddCommand(
		newVersionCommand(),
		newServeCommand(),
		newColorCommand(),
		newIssueCommand(),
		newTransferCommand(),
		newSwapCommand(),
		newBurnCommand(),
		newMigrateCommand(),
	)
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Panic("Failed to execute command", slogx.Error(err))
	}
}

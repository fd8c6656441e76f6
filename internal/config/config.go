package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/common"
	"github.com/openassets-go/openassets/internal/postgres"
	"github.com/openassets-go/openassets/pkg/logger"
	"github.com/openassets-go/openassets/pkg/logger/slogx"
	"github.com/openassets-go/openassets/pkg/middleware/requestcontext"
	"github.com/openassets-go/openassets/pkg/middleware/requestlogger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	parseOnce sync.Once
	config    = &Config{
		Logger: logger.Config{
			Output: "TEXT",
		},
		BitcoinNode: BitcoinNodeClient{
			User: "user",
			Pass: "pass",
		},
		HTTPServer: HTTPServerConfig{
			Port: 8080,
		},
		DustLimit: 546,
	}
)

type Config struct {
	Logger      logger.Config      `mapstructure:"logger"`
	Network     common.Network     `mapstructure:"network"`
	BitcoinNode BitcoinNodeClient  `mapstructure:"bitcoin_node"`
	Postgres    postgres.Config    `mapstructure:"postgres"`
	HTTPServer  HTTPServerConfig   `mapstructure:"http_server"`
	// DustLimit is the minimum value, in satoshis, of every non-OP_RETURN
	// output the transaction builder emits (see openassets.Builder).
	DustLimit int64 `mapstructure:"dust_limit"`
}

type BitcoinNodeClient struct {
	Host       string `mapstructure:"host"`
	User       string `mapstructure:"user"`
	Pass       string `mapstructure:"pass"`
	DisableTLS bool   `mapstructure:"disable_tls"`
}

type HTTPServerConfig struct {
	Port      int                                `mapstructure:"port"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
}

// BindPFlag binds a pflag to a configuration key, so that the flag value
// takes precedence over the config file / environment variable for that key.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("Failed to bind flag to configuration", slogx.String("key", key), slogx.Error(err))
	}
}

// Parse reads the configuration file (if provided) and environment
// variables into the package-level config, returning the result. Safe to
// call multiple times; only the first call actually parses.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	parseOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotFound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotFound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
		logger.InfoContext(ctx, "loaded configuration successfully")
	})

	return *config
}

// Load returns the already-parsed configuration. Parse must have run first
// (cobra.OnInitialize does this for every command); Load falls back to
// parsing with no config file if it has not.
func Load() Config {
	return Parse("")
}

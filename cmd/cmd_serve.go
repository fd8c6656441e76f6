package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/openassets-go/openassets/common/errs"
	"github.com/openassets-go/openassets/internal/config"
	"github.com/openassets-go/openassets/internal/openassets"
	"github.com/openassets-go/openassets/internal/openassets/api/httphandler"
	cachepostgres "github.com/openassets-go/openassets/internal/openassets/repository/postgres"
	"github.com/openassets-go/openassets/internal/postgres"
	"github.com/openassets-go/openassets/pkg/automaxprocs"
	"github.com/openassets-go/openassets/pkg/errorhandler"
	"github.com/openassets-go/openassets/pkg/logger"
	"github.com/openassets-go/openassets/pkg/logger/slogx"
	"github.com/openassets-go/openassets/pkg/middleware/requestcontext"
	"github.com/openassets-go/openassets/pkg/middleware/requestlogger"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Open Assets HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := automaxprocs.Init(); err != nil {
				logger.Error("Failed to set GOMAXPROCS", slogx.Error(err))
			}
			return serveHandler(cmd)
		},
	}
}

func serveHandler(cmd *cobra.Command) error {
	conf := config.Load()
	if !conf.Network.IsSupported() {
		return errors.Wrapf(errs.Unsupported, "%q network is not supported", conf.Network.String())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, slogx.Stringer("network", conf.Network))

	injector := do.New()
	do.ProvideValue(injector, conf)
	do.ProvideValue(injector, ctx)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			logger.ErrorContext(ctx, "Failed to shut down dependency graph cleanly", err)
		}
	}()

	do.Provide(injector, func(i do.Injector) (*rpcclient.Client, error) {
		return newRPCClient(do.MustInvoke[context.Context](i), do.MustInvoke[config.Config](i))
	})
	do.Provide(injector, func(i do.Injector) (openassets.OutputCache, error) {
		conf := do.MustInvoke[config.Config](i)
		if conf.Postgres.URL == "" && conf.Postgres.Host == "" {
			return openassets.NewMemoryCache(), nil
		}
		pool, err := postgres.NewPool(do.MustInvoke[context.Context](i), conf.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "cannot connect to Postgres")
		}
		return cachepostgres.NewOutputCache(pool), nil
	})
	do.Provide(injector, func(i do.Injector) (*openassets.Engine, error) {
		client := do.MustInvoke[*rpcclient.Client](i)
		cache := do.MustInvoke[openassets.OutputCache](i)
		return openassets.NewEngine(openassets.NewRPCFetcher(client), cache), nil
	})
	do.Provide(injector, func(i do.Injector) (*openassets.Builder, error) {
		return openassets.NewBuilder(do.MustInvoke[config.Config](i).DustLimit), nil
	})

	engine, err := do.Invoke[*openassets.Engine](injector)
	if err != nil {
		return err
	}
	builder := do.MustInvoke[*openassets.Builder](injector)

	app := fiber.New(fiber.Config{
		AppName:      "Open Assets Indexer",
		ErrorHandler: errorhandler.NewHTTPErrorHandler(),
	})
	app.
		Use(favicon.New()).
		Use(cors.New()).
		Use(requestid.New()).
		Use(requestcontext.New(
			requestcontext.WithRequestId(),
			requestcontext.WithClientIP(conf.HTTPServer.RequestIP),
		)).
		Use(requestlogger.New(conf.HTTPServer.Logger)).
		Use(fiberrecover.New(fiberrecover.Config{
			EnableStackTrace: true,
			StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
				buf := make([]byte, 1024)
				buf = buf[:runtime.Stack(buf, false)]
				logger.ErrorContext(c.UserContext(), "panic in http handler", fmt.Errorf("%v", e), slog.String("stacktrace", string(buf)))
			},
		})).
		Use(compress.New(compress.Config{Level: compress.LevelDefault}))

	app.Get("/", func(c *fiber.Ctx) error {
		return errors.WithStack(c.SendStatus(http.StatusOK))
	})
	httphandler.New(conf.Network, engine, builder).Register(app)

	go func() {
		defer stop()
		logger.InfoContext(ctx, "Started HTTP server", slog.Int("port", conf.HTTPServer.Port))
		if err := app.Listen(fmt.Sprintf(":%d", conf.HTTPServer.Port)); err != nil {
			logger.ErrorContext(ctx, "HTTP server stopped", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "Failed to gracefully shut down HTTP server", err)
	}
	return nil
}

func newRPCClient(ctx context.Context, conf config.Config) (*rpcclient.Client, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         conf.BitcoinNode.Host,
		User:         conf.BitcoinNode.User,
		Pass:         conf.BitcoinNode.Pass,
		DisableTLS:   conf.BitcoinNode.DisableTLS,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Bitcoin node configuration")
	}

	start := time.Now()
	logger.InfoContext(ctx, "Connecting to Bitcoin Core RPC server...", slogx.String("host", conf.BitcoinNode.Host))
	if err := client.Ping(); err != nil {
		return nil, errors.Wrapf(err, "can't connect to Bitcoin Core RPC server %q", conf.BitcoinNode.Host)
	}
	logger.InfoContext(ctx, "Connected to Bitcoin Core RPC server", slog.Duration("latency", time.Since(start)))
	return client, nil
}

package main

import (
	"context"
	"io"
	"os"

	"github.com/genricoloni/spotline/internal/config"
	"github.com/genricoloni/spotline/internal/display"
	"github.com/genricoloni/spotline/internal/domain"
	"github.com/genricoloni/spotline/internal/engine"
	"github.com/genricoloni/spotline/internal/fetcher"
	"github.com/genricoloni/spotline/internal/monitor"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions assembles the daemon: logger, session bus and core
func AppOptions(opts config.Options, debug bool) fx.Option {
	return fx.Options(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Supply(opts),
		fx.Provide(func() (*zap.Logger, error) { return newLogger(debug) }),
		fx.Provide(func() io.Writer { return os.Stdout }),

		BusModule,
		CoreModule,
	)
}

// BusModule provides the session bus connection
var BusModule = fx.Module("bus",
	fx.Provide(newBusClient),
)

// CoreModule provides everything that runs on top of the bus
var CoreModule = fx.Module("core",
	fx.Provide(
		fx.Annotate(config.NewAppConfig, fx.As(new(domain.Config))),
		monitor.NewWatcher,
		monitor.NewConnector,
		newLyricsClient,
		engine.NewEngine,
		newSink,
	),
	fx.Invoke(registerHooks),
)

// newLogger creates a new zap logger instance
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newBusClient connects to the session bus and closes it on shutdown
func newBusClient(lc fx.Lifecycle, logger *zap.Logger) (monitor.DBusClient, error) {
	client, err := monitor.NewStdDBusClient()
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Debug("Closing session bus connection")
			return client.Close()
		},
	})
	return client, nil
}

func newLyricsClient(logger *zap.Logger, cfg domain.Config) domain.LyricsClient {
	return fetcher.NewLRCLibClient(logger, cfg.GetLyricsURL(), cfg.GetHTTPTimeout())
}

// newSink builds the writer sink, followed by the update command when one is configured.
// A command that cannot be found is logged and skipped.
func newSink(logger *zap.Logger, cfg domain.Config, w io.Writer) domain.Sink {
	sinks := display.MultiSink{display.NewWriterSink(logger, w, cfg.GetOutputFormat(), cfg.GetPosition())}

	if template := cfg.GetUpdateCommand(); template != "" {
		command, err := display.NewCommandSink(logger, template)
		if err != nil {
			logger.Warn("Update command disabled", zap.Error(err))
		} else {
			sinks = append(sinks, command)
		}
	}
	return sinks
}

// registerHooks ties the engine and the display pump to the application lifecycle
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, eng *engine.Engine, sink domain.Sink) {
	pumpCtx, cancel := context.WithCancel(context.Background())
	pumpDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := eng.Start(ctx); err != nil {
				return err
			}
			go func() {
				defer close(pumpDone)
				display.Pump(pumpCtx, logger, eng.Updates(), sink)
			}()
			logger.Info("Spotline started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			err := eng.Stop(ctx)

			// Stop closes the updates channel, the pump drains and returns
			select {
			case <-pumpDone:
			case <-ctx.Done():
			}
			cancel()
			return err
		},
	})
}

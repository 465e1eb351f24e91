// Package main is the entry point for the kstream demo client: it loads
// configuration, wires a stream.Runtime with a logger, strategy presets,
// and telemetry, then drives either a terminal dashboard or plain CLI
// log output. Grounded on cmd/arbitrage/main.go's flag/signal/run shape,
// trimmed to one runtime instead of a multi-module monolith container.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	kconfig "github.com/marketfeed/kstream/config"
	"github.com/marketfeed/kstream/health"
	"github.com/marketfeed/kstream/logger"
	"github.com/marketfeed/kstream/pkg/dashboard"
	"github.com/marketfeed/kstream/strategy"
	"github.com/marketfeed/kstream/stream"
	"github.com/marketfeed/kstream/telemetry"
	"github.com/marketfeed/kstream/wire"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to configuration file")
	cliMode := flag.Bool("cli", false, "run with plain log output instead of the TUI")
	symbols := flag.String("symbols", "XBT/USD,ETH/USD", "comma-separated ticker symbols to subscribe to")
	showVersion := flag.Bool("version", false, "print version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streamdemo %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *configPath, *symbols, !*cliMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, symbolsCSV string, tuiMode bool) error {
	file, err := kconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var log logger.Interface
	if tuiMode {
		log = logger.Noop() // the dashboard owns the terminal; logs would corrupt it
	} else {
		log = logger.New(file.App.LogLevel, os.Stderr)
		log.Info(ctx, "starting kstream demo", logger.F("version", version))
	}

	if file.Telemetry.Enabled {
		provider, err := telemetry.NewProvider(
			telemetry.WithServiceName(file.Telemetry.ServiceName),
			telemetry.WithExporter(telemetry.ExporterConfig{Kind: telemetry.ExporterPrometheus}),
		)
		if err != nil {
			return fmt.Errorf("failed to init telemetry: %w", err)
		}
		defer provider.Shutdown(ctx)

		port := file.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go func() {
			if err := telemetry.ServePrometheus(":" + strconv.Itoa(port)); err != nil {
				log.Warn(ctx, "prometheus server stopped", logger.F("error", err))
			}
		}()

		traceCfg := telemetry.TraceConfig{
			ServiceName: file.Telemetry.ServiceName,
			Exporter:    telemetry.TraceExporterKind(file.Telemetry.TraceExporter),
			Endpoint:    file.Telemetry.OTLPEndpoint,
		}
		tracerProvider, err := telemetry.NewTracerProvider(traceCfg)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer tracerProvider.Shutdown(ctx)
	}

	cfg := file.StreamConfig()
	cfg.Logger = log

	var dash *dashboard.Dashboard
	if tuiMode {
		dash = dashboard.New(nil)
		cfg.Callbacks.OnTicker = dash.OnTicker
		cfg.Callbacks.OnAlert = dash.OnAlert
		cfg.Callbacks.OnError = dash.OnError
	} else {
		cfg.Callbacks.OnTicker = func(tk wire.Ticker) {
			log.Info(ctx, "ticker", logger.F("symbol", tk.Symbol), logger.F("last", tk.Last))
		}
		cfg.Callbacks.OnAlert = func(a strategy.Alert) {
			log.Info(ctx, "alert", logger.F("name", a.Name), logger.F("message", a.Message))
		}
		cfg.Callbacks.OnError = func(err error) { log.Error(ctx, "stream error", logger.F("error", err)) }
		cfg.Callbacks.OnReconnect = func(attempt int, delay time.Duration, reason string) {
			log.Warn(ctx, "reconnecting", logger.F("attempt", attempt), logger.F("delay", delay), logger.F("reason", reason))
		}
	}

	rt := stream.New(cfg)
	if dash != nil {
		dash.SetRuntime(rt)
	}

	healthServer := health.NewServer(8081, version)
	healthServer.RegisterCheck("stream", func(context.Context) (bool, string) {
		switch rt.Metrics().ConnectionState {
		case stream.Connected:
			return true, ""
		case stream.Connecting, stream.Reconnecting:
			return false, "reconnecting"
		default:
			return false, "disconnected"
		}
	})
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", logger.F("error", err))
	}
	defer healthServer.Stop(ctx)

	symbols := splitSymbols(symbolsCSV)
	registerDefaultAlerts(rt, symbols)
	for _, sym := range symbols {
		rt.Subscriptions().Subscribe(wire.ChannelTicker, []string{sym}, 0)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Run(ctx) }()

	dashDone := make(chan struct{})
	if dash != nil {
		go func() {
			defer close(dashDone)
			if err := dash.Run(); err != nil {
				log.Error(ctx, "dashboard error", logger.F("error", err))
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		rt.Stop()
		return nil
	case <-dashDone:
		rt.Stop()
		return nil
	}
}

func registerDefaultAlerts(rt *stream.Runtime, symbols []string) {
	for _, sym := range symbols {
		rt.Strategies().Register("volume-spike:"+sym, []string{sym}, strategy.NewVolumeSpike([]string{sym}, 2.0, 50))
	}
}

func splitSymbols(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

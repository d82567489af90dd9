// Command orderwatch is the entry point for the order-watching service. It
// loads configuration, validates it, wires the application, sets up signal
// handling, and runs until shut down. The "sign-demo" subcommand signs a
// synthetic order locally so AddOrder's verification path can be exercised
// without a live wallet integration; it never submits anything on-chain.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/orderwatch/internal/app"
	"github.com/alanyoungcy/orderwatch/internal/config"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "sign-demo" {
		runSignDemo(os.Args[2:])
		return
	}
	runWatch(os.Args[1:])
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("orderwatch", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to configuration file")
	_ = fs.Parse(args)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redacted := config.RedactedConfig(cfg)
	logger.Info("orderwatch starting",
		slog.String("config", *configPath),
		slog.String("rpc_url", redacted.Chain.RPCURL),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if err == context.Canceled {
			logger.Info("orderwatch shut down gracefully")
		} else {
			logger.Error("orderwatch exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("orderwatch stopped")
}

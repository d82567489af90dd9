// Package app provides the top-level application lifecycle management for
// orderwatch. It wires the chain client, the order-state evaluator, the
// log-polling event source, and the Watcher facade together, then exposes
// a Prometheus endpoint and blocks until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/orderwatch/internal/chainclient"
	"github.com/alanyoungcy/orderwatch/internal/config"
	"github.com/alanyoungcy/orderwatch/internal/domain"
	"github.com/alanyoungcy/orderwatch/internal/evaluator"
	"github.com/alanyoungcy/orderwatch/internal/eventsource"
	"github.com/alanyoungcy/orderwatch/internal/metrics"
	"github.com/alanyoungcy/orderwatch/internal/orderutil"
	"github.com/alanyoungcy/orderwatch/internal/watcher"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires every collaborator described in spec.md §6, subscribes a
// logging callback to the Watcher, and blocks until ctx is cancelled or the
// Watcher reports a terminal error.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("rpc_url", a.cfg.Chain.RPCURL),
		slog.String("log_level", a.cfg.LogLevel),
	)

	exchange := common.HexToAddress(a.cfg.Chain.ExchangeAddress)
	transferProxy := common.HexToAddress(a.cfg.Chain.TransferProxy)
	layer := chainclient.StateLayer(a.cfg.Chain.StateLayer)

	rawClient, err := ethclient.DialContext(ctx, a.cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("app: dial chain: %w", err)
	}
	a.closers = append(a.closers, rawClient.Close)

	ec := chainclient.New(rawClient, exchange, transferProxy, layer)

	source := eventsource.New(rawClient, nil,
		eventsource.WithPollInterval(time.Duration(a.cfg.Watcher.PollIntervalMs)*time.Millisecond),
		eventsource.WithLogger(a.logger),
	)

	zrx, err := ec.ZRXTokenAddress(ctx)
	if err != nil {
		return fmt.Errorf("app: resolve ZRX token address: %w", err)
	}
	eval := evaluator.New(transferProxy, zrx)
	verifier := orderutil.Verifier{Exchange: exchange, ZRX: zrx}

	var recorder metrics.Recorder = (*metrics.Prometheus)(nil)
	if a.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		recorder = metrics.New(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server exited", slog.String("error", err.Error()))
			}
		}()
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	w := watcher.New(ec, eval, source, verifier, watcher.Options{
		PollIntervalMs:    a.cfg.Watcher.ExpirationPollIntervalMs,
		SafetyMarginMs:    a.cfg.Watcher.ExpirationMarginMs,
		CleanupIntervalMs: a.cfg.Watcher.CleanupIntervalMs,
		Logger:            a.logger,
		Recorder:          recorder,
	})
	a.closers = append(a.closers, func() { _ = w.Unsubscribe() })

	done := make(chan error, 1)
	err = w.Subscribe(ctx, func(err error, state *domain.OrderState) {
		if err != nil {
			a.logger.Error("watcher reported a terminal error", slog.String("error", err.Error()))
			select {
			case done <- err:
			default:
			}
			return
		}
		a.logger.Info("order state changed",
			slog.String("order_hash", state.OrderHash.Hex()),
			slog.Bool("valid", state.Valid),
			slog.String("reason", string(state.Reason)),
		)
	})
	if err != nil {
		return fmt.Errorf("app: subscribe: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return fmt.Errorf("app: watcher: %w", err)
	}
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

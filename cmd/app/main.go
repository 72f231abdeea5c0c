package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"maker_go/internal/app"
	"maker_go/internal/event"
	"maker_go/internal/gateway"
	"maker_go/internal/infra"
	"maker_go/internal/strategy"

	_ "net/http/pprof" // For pprof profiling
)

// priceFeed is satisfied by both the REST poller and the WS feed.
type priceFeed interface {
	strategy.PriceSource
	Start(ctx context.Context)
	Stop()
}

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 2. Debug Server (pprof + Prometheus metrics)
	if cfg.Debug.Addr != "" {
		go func() {
			http.Handle("/metrics", infra.MetricsHandler())
			slog.Info("🕵️ Debug server started", slog.String("addr", cfg.Debug.Addr))
			if err := http.ListenAndServe(cfg.Debug.Addr, nil); err != nil {
				slog.Error("Debug server failed", slog.Any("error", err))
			}
		}()
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Venue + Order Gateway
	venue, err := gateway.NewVenue(cfg)
	if err != nil {
		slog.Error("❌ Venue init failed", slog.Any("error", err))
		os.Exit(1)
	}

	bus := event.NewBus()
	gw := gateway.NewOrderGateway(venue, bus, bootstrap.Store)

	// Crash recovery: restore in-flight orders before the first tick.
	states, err := bootstrap.Store.LoadTrackingStates(ctx)
	if err != nil {
		slog.Error("❌ Failed to load tracking states", slog.Any("error", err))
		os.Exit(1)
	}
	if len(states) > 0 {
		gw.RestoreTrackingStates(states)
		slog.Info("✅ Tracking states restored", slog.Int("orders", len(states)))
	}
	startMs := time.Now().UnixMilli()
	if err := bootstrap.Store.UpsertMetadata(ctx, "strategy_start", strconv.FormatInt(startMs, 10), startMs); err != nil {
		slog.Warn("Failed to record strategy start time", slog.Any("error", err))
	}

	// 5. Market Data + Balance Feeds
	var prices priceFeed
	switch {
	case cfg.Venue.WSURL != "":
		pairs := make([]string, 0, len(cfg.Markets()))
		for _, m := range cfg.Markets() {
			pairs = append(pairs, m.Pair())
		}
		prices = infra.NewWSMidPriceFeed(cfg.Venue.WSURL, pairs)
	case cfg.Venue.RestURL != "":
		interval := time.Duration(cfg.Polling.MidPriceIntervalMs) * time.Millisecond
		prices = infra.NewMidPriceFeed(cfg.Venue.RestURL, interval)
	default:
		slog.Error("❌ No mid-price source configured (venue ws_url or rest_url required)")
		os.Exit(1)
	}
	prices.Start(ctx)
	defer prices.Stop()

	balanceInterval := time.Duration(cfg.Polling.BalanceIntervalMs) * time.Millisecond
	balances := infra.NewBalancePoller(venue.AllBalances, balanceInterval)
	balances.Start(ctx)
	defer balances.Stop()

	// 6. Market Maker (The Hotpath Loop)
	maker := strategy.NewMarketMaker(cfg, prices, balances, gw, venue)

	bus.Subscribe(event.KindOrderFilled, func(ev event.Event) {
		fill := ev.(event.OrderFilled)
		maker.OnFill(fill.Pair, fill.Side, fill.Price, fill.Amount)
	})

	// Paper venue reports its simulated fills through the gateway.
	if paper, ok := venue.(*gateway.PaperVenue); ok {
		paper.SetFillHandler(gw.NotifyFill)
	}

	go maker.Run(ctx)
	slog.InfoContext(ctx, "✅ Market maker (Hotpath) started")

	reporter := app.NewStatusReporter(cfg, maker, gw)
	go reporter.Run(ctx)

	slog.InfoContext(ctx, "✨ Maker Go fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	maker.Wait()
	gw.Wait()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"maker_go/internal/infra"
)

// Standalone smoke test for the mid-price feed. Connects with the
// configured venue URLs and prints the mid cache once a second.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("🚀 Starting mid-price feed test...")

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("❌ Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Venue.WSURL != "" {
		var pairs []string
		for _, m := range cfg.Markets() {
			pairs = append(pairs, m.Pair())
		}
		ws := infra.NewWSMidPriceFeed(cfg.Venue.WSURL, pairs)
		ws.Start(ctx)
		defer ws.Stop()
		dump(ctx, func() map[string]string { return stringify(ws.MidPrices()) })
		return
	}

	if cfg.Venue.RestURL == "" {
		slog.Error("❌ No venue ws_url or rest_url configured")
		os.Exit(1)
	}
	rest := infra.NewMidPriceFeed(cfg.Venue.RestURL, time.Duration(cfg.Polling.MidPriceIntervalMs)*time.Millisecond)
	rest.Start(ctx)
	defer rest.Stop()
	dump(ctx, func() map[string]string { return stringify(rest.MidPrices()) })
}

func stringify[T fmt.Stringer](in map[string]T) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v.String()
	}
	return out
}

func dump(ctx context.Context, mids func() map[string]string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := mids()
			if len(snapshot) == 0 {
				fmt.Println("(no mids yet)")
				continue
			}
			pairs := make([]string, 0, len(snapshot))
			for p := range snapshot {
				pairs = append(pairs, p)
			}
			sort.Strings(pairs)
			for _, p := range pairs {
				fmt.Printf("  %-12s %s\n", p, snapshot[p])
			}
			fmt.Println("---")
		}
	}
}

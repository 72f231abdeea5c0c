package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"maker_go/internal/infra"
	"maker_go/internal/storage"
)

// Dumps persisted in-flight order tracking states from orders.db.
// Useful after a crash to see what the next start will reconcile.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("❌ Failed to load config", "error", err)
		os.Exit(1)
	}

	mode := strings.ToLower(cfg.Trading.Mode)
	dbPath := filepath.Join(infra.GetWorkspaceDir(), "data", mode, "orders.db")

	store, err := storage.NewOrderStore(dbPath)
	if err != nil {
		slog.Error("❌ Failed to open order store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	states, err := store.LoadTrackingStates(context.Background())
	if err != nil {
		slog.Error("❌ Failed to load tracking states", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Tracking states in %s: %d\n", dbPath, len(states))
	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		o := states[id]
		fmt.Printf("  %-36s %-11s %-4s %-12s %s @ %s (venue id: %s)\n",
			o.ClientID, o.Pair, o.Side, o.Status, o.Amount, o.Price, o.VenueID)
	}
}

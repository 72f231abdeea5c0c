package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"maker_go/internal/infra"
	"maker_go/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.OrderStore

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB, dirs).
// Configuration errors are fatal here, before the tick loop starts.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Maker Go...")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Data Isolation - _workspace/data/{mode}/orders.db
	mode := strings.ToLower(cfg.Trading.Mode)

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	// 3.1 Singleton Instance Lock
	// Two processes sharing one orders.db would corrupt tracking state.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	dbPath := filepath.Join(dataDir, "orders.db")
	store, err := storage.NewOrderStore(dbPath)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ OrderStore initialized (WAL-mode)", "path", dbPath, "mode", mode)

	return nil
}

// Close releases the store and the instance lock.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("OrderStore close failed", slog.Any("error", err))
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}

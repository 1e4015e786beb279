package app

import (
	"context"
	"log/slog"

	"paper_trade/internal/execution"
	"paper_trade/internal/infra"
	"paper_trade/internal/infra/storage"
	"paper_trade/internal/ledger"
	"paper_trade/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Prices  *service.PriceStore
	Ledger  *ledger.Ledger
	Engine  *execution.Engine
	Refresh *infra.CoinGeckoClient
	Icons   *infra.IconSync
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB, wiring)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping paper trading ledger...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Price store over the persisted observation log
	prices, err := service.NewPriceStore(store)
	if err != nil {
		return err
	}
	b.Prices = prices

	// 5. Ledger + execution engine
	b.Ledger = ledger.New(store)
	b.Engine = execution.NewEngine(prices, b.Ledger, store)

	// 6. Price refresh collaborator
	b.Refresh = infra.NewCoinGeckoClient(cfg, prices)

	// 7. Icon sync for the dashboard
	icons, err := infra.NewIconSync("assets/icons")
	if err != nil {
		return err
	}
	b.Icons = icons
	slog.Info("✅ Core components wired")

	return nil
}

// SyncAssets downloads coin icons for all configured symbols in the background
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	slog.Info("🔄 Starting icon synchronization...")

	symbols := make([]string, 0, len(b.Config.Prices.Symbols))
	for symbol := range b.Config.Prices.Symbols {
		symbols = append(symbols, symbol)
	}

	b.Icons.SyncAll(ctx, symbols)
	slog.Info("✨ Icon synchronization completed")
}

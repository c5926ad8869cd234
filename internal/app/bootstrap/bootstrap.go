package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	royaltyledger "treehauz/contexts/finance-core/royalty-ledger"
	ledgerpostgres "treehauz/contexts/finance-core/royalty-ledger/adapters/postgres"
	ledgerapp "treehauz/contexts/finance-core/royalty-ledger/application"
	ledgerworkers "treehauz/contexts/finance-core/royalty-ledger/application/workers"
	accessguard "treehauz/contexts/identity-access/access-guard"
	guardentities "treehauz/contexts/identity-access/access-guard/domain/entities"
	tradingservice "treehauz/contexts/marketplace-trading/trading-service"
	tradingpostgres "treehauz/contexts/marketplace-trading/trading-service/adapters/postgres"
	tradingworkers "treehauz/contexts/marketplace-trading/trading-service/application/workers"
	tradingentities "treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	tradingports "treehauz/contexts/marketplace-trading/trading-service/ports"
	"treehauz/internal/platform/assets"
	"treehauz/internal/platform/config"
	"treehauz/internal/platform/db"
	"treehauz/internal/platform/httpserver"
	"treehauz/internal/platform/messaging"
	"treehauz/internal/platform/vault"
	"treehauz/internal/shared/guard"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	marketRelay  tradingworkers.OutboxRelay
	ledgerRelay  ledgerworkers.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

// ledgerPayout adapts the royalty distributor to the trading module's payout
// port.
type ledgerPayout struct {
	service ledgerapp.Service
}

func (p ledgerPayout) Payout(ctx context.Context, payee string, amount uint64, listing tradingports.SaleListing) error {
	return p.service.Payout(ctx, payee, amount, ledgerapp.SaleReference{
		ListingID:     listing.ListingID,
		AssetContract: listing.AssetContract,
		AssetID:       listing.AssetID,
	})
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	simulator := assets.NewSimulator(defaultContracts(), logger)
	valueVault := vault.New(logger)

	guardModule := accessguard.NewInMemoryModule(seedRoles(cfg), cfg.MarketPaused, logger)

	var pg *db.Postgres
	var ledgerModule royaltyledger.Module
	var tradingModule tradingservice.Module

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		ledgerModule = royaltyledger.NewInMemoryModule(
			simulator, valueVault, guardModule.Service, cfg.MarketFeeBps, cfg.Operator, logger,
		)
		tradingModule = tradingservice.NewInMemoryModule(
			simulator, valueVault, guardModule.Service,
			ledgerPayout{service: ledgerModule.Service},
			cfg.MinListPrice, cfg.MarketCustody, logger,
		)
	} else {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		ledgerRepo := ledgerpostgres.NewRepository(pg.DB, logger)
		ledgerModule = royaltyledger.NewModule(royaltyledger.Dependencies{
			Ledger:      ledgerRepo,
			Outbox:      ledgerRepo,
			Assets:      simulator,
			Vault:       valueVault,
			Guard:       guardModule.Service,
			Clock:       ledgerpostgres.SystemClock{},
			IDGenerator: ledgerpostgres.UUIDGenerator{},
			Operator:    cfg.Operator,
			Logger:      logger,
		})

		tradingRepo := tradingpostgres.NewRepository(pg.DB, logger)
		tradingModule = tradingservice.NewModule(tradingservice.Dependencies{
			Listings:        tradingRepo,
			Offers:          tradingRepo,
			Assets:          simulator,
			Vault:           valueVault,
			Guard:           guardModule.Service,
			Payouts:         ledgerPayout{service: ledgerModule.Service},
			Outbox:          tradingRepo,
			CallGuard:       &guard.CallGuard{},
			Clock:           tradingpostgres.SystemClock{},
			IDGenerator:     tradingpostgres.UUIDGenerator{},
			MinListingPrice: cfg.MinListPrice,
			MarketCustody:   cfg.MarketCustody,
			Logger:          logger,
		})
	}

	server := httpserver.New(tradingModule, ledgerModule, guardModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus, err := messaging.NewBus(cfg.BrokerAddrs, logger)
	if err != nil {
		return nil, err
	}

	tradingRepo := tradingpostgres.NewRepository(pg.DB, logger)
	ledgerRepo := ledgerpostgres.NewRepository(pg.DB, logger)

	return &WorkerApp{
		postgres: pg,
		marketRelay: tradingworkers.OutboxRelay{
			Outbox:    tradingRepo,
			Publisher: bus,
			Topic:     "market.facts",
			Clock:     tradingpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		ledgerRelay: ledgerworkers.OutboxRelay{
			Outbox:    ledgerRepo,
			Publisher: bus,
			Topic:     "ledger.facts",
			Clock:     ledgerpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.marketRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.ledgerRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func seedRoles(cfg config.Config) []guardentities.RoleAssignment {
	seeds := make([]guardentities.RoleAssignment, 0, 2)
	if strings.TrimSpace(cfg.AdminAccount) != "" {
		seeds = append(seeds, guardentities.RoleAssignment{
			Account:   cfg.AdminAccount,
			Role:      guardentities.RoleAdmin,
			GrantedBy: "bootstrap",
		})
	}
	if strings.TrimSpace(cfg.AdapterID) != "" {
		seeds = append(seeds, guardentities.RoleAssignment{
			Account:   cfg.AdapterID,
			Role:      guardentities.RoleAssetAdapter,
			GrantedBy: "bootstrap",
		})
	}
	return seeds
}

func defaultContracts() []assets.Contract {
	return []assets.Contract{
		{Address: "native-single", Kind: tradingentities.AssetKindSingle, Native: true},
		{Address: "native-multi", Kind: tradingentities.AssetKindMulti, Native: true},
		{
			Address:                "foreign-single",
			Kind:                   tradingentities.AssetKindSingle,
			Native:                 false,
			ForeignRoyaltyBps:      500,
			ForeignRoyaltyReceiver: "foreign-royalty-treasury",
		},
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

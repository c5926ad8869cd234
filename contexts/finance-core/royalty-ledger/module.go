package royaltyledger

import (
	"log/slog"

	httpadapter "treehauz/contexts/finance-core/royalty-ledger/adapters/http"
	"treehauz/contexts/finance-core/royalty-ledger/adapters/memory"
	"treehauz/contexts/finance-core/royalty-ledger/application"
	"treehauz/contexts/finance-core/royalty-ledger/ports"
	"treehauz/internal/shared/guard"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Ledger      ports.LedgerRepository
	Outbox      ports.OutboxWriter
	Assets      ports.AssetAdapter
	Vault       ports.ValueVault
	Guard       ports.ActivityGuard
	CallGuard   *guard.CallGuard
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Operator    string
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	callGuard := deps.CallGuard
	if callGuard == nil {
		callGuard = &guard.CallGuard{}
	}

	service := application.Service{
		Ledger:    deps.Ledger,
		Assets:    deps.Assets,
		Vault:     deps.Vault,
		Guard:     deps.Guard,
		Outbox:    deps.Outbox,
		CallGuard: callGuard,
		Clock:     deps.Clock,
		IDGen:     deps.IDGenerator,
		Operator:  deps.Operator,
		Logger:    deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule wires the ledger against the in-memory store. External
// collaborators (assets, vault, guard) still come from the caller.
func NewInMemoryModule(
	assets ports.AssetAdapter,
	vault ports.ValueVault,
	activity ports.ActivityGuard,
	feeBps uint64,
	operator string,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(feeBps, logger)
	module := NewModule(Dependencies{
		Ledger:      store,
		Outbox:      store,
		Assets:      assets,
		Vault:       vault,
		Guard:       activity,
		Clock:       store,
		IDGenerator: store,
		Operator:    operator,
		Logger:      logger,
	})
	module.Store = store
	return module
}

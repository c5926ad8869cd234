package accessguard

import (
	"log/slog"

	"treehauz/contexts/identity-access/access-guard/adapters/memory"
	"treehauz/contexts/identity-access/access-guard/application"
	"treehauz/contexts/identity-access/access-guard/domain/entities"
	"treehauz/contexts/identity-access/access-guard/ports"
)

// Module is the composition surface for the access guard. Other modules
// consume Service through their own narrow guard ports; Store is exposed for
// tests/inspection.
type Module struct {
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Repo:   deps.Repo,
			Clock:  deps.Clock,
			IDGen:  deps.IDGen,
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires the guard against in-memory adapters. This is the
// developer/runtime bootstrap path; role and pause state is process-local
// configuration rather than durable data.
func NewInMemoryModule(seedRoles []entities.RoleAssignment, marketPaused bool, logger *slog.Logger) Module {
	store := memory.NewStore(seedRoles, marketPaused, logger)
	module := NewModule(Dependencies{
		Repo:   store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}

package tradingservice

import (
	"log/slog"

	httpadapter "treehauz/contexts/marketplace-trading/trading-service/adapters/http"
	"treehauz/contexts/marketplace-trading/trading-service/adapters/memory"
	"treehauz/contexts/marketplace-trading/trading-service/application/commands"
	"treehauz/contexts/marketplace-trading/trading-service/application/queries"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
	"treehauz/internal/shared/guard"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Listings ports.ListingRepository
	Offers   ports.OfferRepository
	Assets   ports.AssetAdapter
	Vault    ports.ValueVault
	Guard    ports.ActivityGuard
	Payouts  ports.PayoutService
	Outbox   ports.OutboxWriter
	// CallGuard is shared by every mutating path of the module so a
	// re-entrant call through any external collaborator is rejected.
	CallGuard       *guard.CallGuard
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	MinListingPrice uint64
	MarketCustody   string
	Logger          *slog.Logger
}

func NewModule(deps Dependencies) Module {
	callGuard := deps.CallGuard
	if callGuard == nil {
		callGuard = &guard.CallGuard{}
	}

	sale := commands.SaleExecutor{
		Listings:      deps.Listings,
		Assets:        deps.Assets,
		Payouts:       deps.Payouts,
		Outbox:        deps.Outbox,
		Clock:         deps.Clock,
		IDGen:         deps.IDGenerator,
		MarketCustody: deps.MarketCustody,
		Logger:        deps.Logger,
	}
	removeListing := commands.RemoveListingUseCase{
		Listings:      deps.Listings,
		Assets:        deps.Assets,
		Outbox:        deps.Outbox,
		CallGuard:     callGuard,
		Clock:         deps.Clock,
		IDGen:         deps.IDGenerator,
		MarketCustody: deps.MarketCustody,
		Logger:        deps.Logger,
	}
	createListing := commands.CreateListingUseCase{
		Listings:        deps.Listings,
		Assets:          deps.Assets,
		Vault:           deps.Vault,
		Guard:           deps.Guard,
		Outbox:          deps.Outbox,
		CallGuard:       callGuard,
		Clock:           deps.Clock,
		IDGen:           deps.IDGenerator,
		MinListingPrice: deps.MinListingPrice,
		MarketCustody:   deps.MarketCustody,
		Logger:          deps.Logger,
	}
	updateListing := commands.UpdateListingUseCase{
		Listings:        deps.Listings,
		Assets:          deps.Assets,
		Outbox:          deps.Outbox,
		CallGuard:       callGuard,
		Clock:           deps.Clock,
		IDGen:           deps.IDGenerator,
		MinListingPrice: deps.MinListingPrice,
		MarketCustody:   deps.MarketCustody,
		Logger:          deps.Logger,
		Remove:          removeListing,
	}
	placeOffer := commands.PlaceOfferUseCase{
		Listings:        deps.Listings,
		Offers:          deps.Offers,
		Vault:           deps.Vault,
		Guard:           deps.Guard,
		Outbox:          deps.Outbox,
		CallGuard:       callGuard,
		Clock:           deps.Clock,
		IDGen:           deps.IDGenerator,
		MinListingPrice: deps.MinListingPrice,
		Logger:          deps.Logger,
	}
	cancelOffer := commands.CancelOfferUseCase{
		Listings:  deps.Listings,
		Offers:    deps.Offers,
		Vault:     deps.Vault,
		Outbox:    deps.Outbox,
		CallGuard: callGuard,
		Clock:     deps.Clock,
		IDGen:     deps.IDGenerator,
		Logger:    deps.Logger,
	}
	purchase := commands.PurchaseUseCase{
		Listings:        deps.Listings,
		Vault:           deps.Vault,
		Guard:           deps.Guard,
		CallGuard:       callGuard,
		MinListingPrice: deps.MinListingPrice,
		Sale:            sale,
		Logger:          deps.Logger,
	}
	acceptOffer := commands.AcceptOfferUseCase{
		Listings:  deps.Listings,
		Offers:    deps.Offers,
		CallGuard: callGuard,
		Sale:      sale,
		Logger:    deps.Logger,
	}

	getListing := queries.GetListingUseCase{
		Listings: deps.Listings,
		Logger:   deps.Logger,
	}
	listListings := queries.ListListingsUseCase{
		Listings: deps.Listings,
		Logger:   deps.Logger,
	}
	listOffers := queries.ListOffersUseCase{
		Offers: deps.Offers,
		Logger: deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateListing: createListing,
			UpdateListing: updateListing,
			RemoveListing: removeListing,
			PlaceOffer:    placeOffer,
			CancelOffer:   cancelOffer,
			Purchase:      purchase,
			AcceptOffer:   acceptOffer,
			GetListing:    getListing,
			ListListings:  listListings,
			ListOffers:    listOffers,
			Logger:        deps.Logger,
		},
	}
}

// NewInMemoryModule wires the trading module against the in-memory store.
// External collaborators (assets, vault, guard, payouts) still come from the
// caller; only persistence, clock and ids are process-local.
func NewInMemoryModule(
	assets ports.AssetAdapter,
	vault ports.ValueVault,
	activity ports.ActivityGuard,
	payouts ports.PayoutService,
	minListingPrice uint64,
	marketCustody string,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(logger)
	module := NewModule(Dependencies{
		Listings:        store,
		Offers:          store,
		Assets:          assets,
		Vault:           vault,
		Guard:           activity,
		Payouts:         payouts,
		Outbox:          store,
		Clock:           store,
		IDGenerator:     store,
		MinListingPrice: minListingPrice,
		MarketCustody:   marketCustody,
		Logger:          logger,
	})
	module.Store = store
	return module
}

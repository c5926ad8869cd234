package commands

import (
	"context"
	"log/slog"

	application "treehauz/contexts/marketplace-trading/trading-service/application"
	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
	"treehauz/internal/shared/guard"
)

type AcceptOfferCommand struct {
	ListingID uint64
	Offeror   string
	Caller    string
}

type AcceptOfferResult struct {
	Listing  entities.Listing
	Quantity uint64
	Paid     uint64
}

type AcceptOfferUseCase struct {
	Listings  ports.ListingRepository
	Offers    ports.OfferRepository
	CallGuard *guard.CallGuard
	Sale      SaleExecutor
	Logger    *slog.Logger
}

// Execute lets the listing owner take a live offer. The escrowed amount must
// match the offer's asking total exactly, and the offer record is deleted
// before the sale path moves any value.
func (u AcceptOfferUseCase) Execute(ctx context.Context, cmd AcceptOfferCommand) (AcceptOfferResult, error) {
	logger := application.ResolveLogger(u.Logger)

	listing, err := u.Listings.GetListing(ctx, cmd.ListingID)
	if err != nil {
		return AcceptOfferResult{}, err
	}
	if listing.Owner != cmd.Caller {
		return AcceptOfferResult{}, domainerrors.ErrNotListingOwner
	}

	offer, found, err := u.Offers.GetOffer(ctx, cmd.ListingID, cmd.Offeror)
	if err != nil {
		return AcceptOfferResult{}, err
	}
	if !found {
		return AcceptOfferResult{}, domainerrors.ErrOfferNotFound
	}
	asking, ok := offer.AskingTotal()
	if !ok || offer.Escrowed != asking {
		return AcceptOfferResult{}, domainerrors.ErrOfferPriceMismatch
	}
	if offer.Quantity > listing.Quantity {
		return AcceptOfferResult{}, domainerrors.ErrInsufficientListingQuantity
	}

	if !u.CallGuard.Enter() {
		return AcceptOfferResult{}, domainerrors.ErrReentrantCall
	}
	defer u.CallGuard.Exit()

	deleted, err := u.Offers.DeleteOffer(ctx, cmd.ListingID, cmd.Offeror)
	if err != nil {
		return AcceptOfferResult{}, err
	}

	remaining, err := u.Sale.Execute(ctx, listing, deleted.Offeror, deleted.Quantity, deleted.Escrowed)
	if err != nil {
		// The sale path restored the listing; reinstate the offer so the
		// whole acceptance is a no-op.
		if undoErr := u.Offers.RestoreOffer(ctx, deleted); undoErr != nil {
			logger.Error("offer restore failed after sale failure",
				"event", "accept_offer_rollback_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", cmd.ListingID,
				"offeror", cmd.Offeror,
				"error", undoErr.Error(),
			)
		}
		return AcceptOfferResult{}, err
	}

	logger.Info("offer accepted",
		"event", "offer_accepted",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"listing_id", cmd.ListingID,
		"offeror", deleted.Offeror,
		"quantity", deleted.Quantity,
		"paid", deleted.Escrowed,
	)
	return AcceptOfferResult{Listing: remaining, Quantity: deleted.Quantity, Paid: deleted.Escrowed}, nil
}

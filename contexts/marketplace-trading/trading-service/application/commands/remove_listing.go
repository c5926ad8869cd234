package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	application "treehauz/contexts/marketplace-trading/trading-service/application"
	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
	"treehauz/internal/shared/guard"
)

type RemoveListingCommand struct {
	ListingID uint64
	Caller    string
}

type RemoveListingResult struct {
	Listing entities.Listing
}

type RemoveListingUseCase struct {
	Listings      ports.ListingRepository
	Assets        ports.AssetAdapter
	Outbox        ports.OutboxWriter
	CallGuard     *guard.CallGuard
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	MarketCustody string
	Logger        *slog.Logger
}

// Execute deletes an owned listing and returns the escrowed asset. The
// listing row and reverse index go first; the custody transfer follows, and a
// transfer failure reinstates the row.
func (u RemoveListingUseCase) Execute(ctx context.Context, cmd RemoveListingCommand) (RemoveListingResult, error) {
	logger := application.ResolveLogger(u.Logger)

	listing, err := u.Listings.GetListing(ctx, cmd.ListingID)
	if err != nil {
		return RemoveListingResult{}, err
	}
	if listing.Owner != cmd.Caller {
		return RemoveListingResult{}, domainerrors.ErrNotListingOwner
	}

	if !u.CallGuard.Enter() {
		return RemoveListingResult{}, domainerrors.ErrReentrantCall
	}
	defer u.CallGuard.Exit()

	if err := u.Listings.DeleteListing(ctx, listing.ListingID); err != nil {
		return RemoveListingResult{}, err
	}

	if err := u.Assets.Transfer(ctx, listing.AssetContract, u.MarketCustody, listing.Owner, listing.AssetID, listing.Quantity); err != nil {
		if undoErr := u.Listings.RestoreListing(ctx, listing); undoErr != nil {
			logger.Error("listing restore failed after escrow return failure",
				"event", "remove_listing_rollback_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", listing.ListingID,
				"error", undoErr.Error(),
			)
		}
		return RemoveListingResult{}, fmt.Errorf("return escrowed asset: %w", err)
	}

	appendFact(ctx, u.Outbox, u.IDGen, u.Logger, u.now(), listingRemovedEventType,
		strconv.FormatUint(listing.ListingID, 10), map[string]any{
			"listing_id":     listing.ListingID,
			"asset_contract": listing.AssetContract,
			"asset_id":       listing.AssetID,
			"owner":          listing.Owner,
		})

	logger.Info("listing removed",
		"event", "listing_removed",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"listing_id", listing.ListingID,
		"owner", listing.Owner,
	)
	return RemoveListingResult{Listing: listing}, nil
}

func (u RemoveListingUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

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

type UpdateListingCommand struct {
	ListingID   uint64
	Caller      string
	NewQuantity uint64
	NewPrice    uint64
}

type UpdateListingResult struct {
	Listing entities.Listing
	Removed bool
}

type UpdateListingUseCase struct {
	Listings        ports.ListingRepository
	Assets          ports.AssetAdapter
	Outbox          ports.OutboxWriter
	CallGuard       *guard.CallGuard
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	MinListingPrice uint64
	MarketCustody   string
	Logger          *slog.Logger
	// Remove handles the zero-quantity path so removal semantics live in one
	// place.
	Remove RemoveListingUseCase
}

// Execute mutates an owned listing. A new quantity of zero removes the
// listing. Multi-unit quantity changes return escrowed units to the owner,
// re-validate the owner's balance, and re-escrow the new amount, in that
// order, so stale balances are never trusted.
func (u UpdateListingUseCase) Execute(ctx context.Context, cmd UpdateListingCommand) (UpdateListingResult, error) {
	logger := application.ResolveLogger(u.Logger)

	listing, err := u.Listings.GetListing(ctx, cmd.ListingID)
	if err != nil {
		return UpdateListingResult{}, err
	}
	if listing.Owner != cmd.Caller {
		return UpdateListingResult{}, domainerrors.ErrNotListingOwner
	}

	if cmd.NewQuantity == 0 {
		if _, err := u.Remove.Execute(ctx, RemoveListingCommand{ListingID: cmd.ListingID, Caller: cmd.Caller}); err != nil {
			return UpdateListingResult{}, err
		}
		return UpdateListingResult{Removed: true}, nil
	}
	if cmd.NewPrice < u.MinListingPrice {
		return UpdateListingResult{}, domainerrors.ErrPriceBelowFloor
	}

	quantity := entities.NormalizeQuantity(listing.AssetKind, cmd.NewQuantity)
	previous := listing
	listing.Quantity = quantity
	listing.UnitPrice = cmd.NewPrice
	listing.UpdatedAt = u.now()

	reescrow := listing.AssetKind == entities.AssetKindMulti && quantity != previous.Quantity
	if reescrow {
		if !u.CallGuard.Enter() {
			return UpdateListingResult{}, domainerrors.ErrReentrantCall
		}
		defer u.CallGuard.Exit()
	}

	if err := u.Listings.UpdateListing(ctx, listing); err != nil {
		return UpdateListingResult{}, err
	}

	if reescrow {
		if err := u.exchangeEscrow(ctx, previous, quantity); err != nil {
			if undoErr := u.Listings.UpdateListing(ctx, previous); undoErr != nil {
				logger.Error("listing rollback failed after escrow exchange failure",
					"event", "update_listing_rollback_failed",
					"module", "marketplace-trading/trading-service",
					"layer", "application",
					"listing_id", previous.ListingID,
					"error", undoErr.Error(),
				)
			}
			return UpdateListingResult{}, err
		}
	}

	appendFact(ctx, u.Outbox, u.IDGen, u.Logger, listing.UpdatedAt, listingUpdatedEventType,
		strconv.FormatUint(listing.ListingID, 10), map[string]any{
			"listing_id": listing.ListingID,
			"quantity":   listing.Quantity,
			"unit_price": listing.UnitPrice,
		})

	logger.Info("listing updated",
		"event", "listing_updated",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"listing_id", listing.ListingID,
		"quantity", listing.Quantity,
		"unit_price", listing.UnitPrice,
	)
	return UpdateListingResult{Listing: listing}, nil
}

// exchangeEscrow returns the previously escrowed units, re-checks the owner's
// balance against the new amount, and escrows it. A failed re-escrow restores
// the previous escrow so custody matches the restored listing row.
func (u UpdateListingUseCase) exchangeEscrow(ctx context.Context, previous entities.Listing, quantity uint64) error {
	logger := application.ResolveLogger(u.Logger)

	if err := u.Assets.Transfer(ctx, previous.AssetContract, u.MarketCustody, previous.Owner, previous.AssetID, previous.Quantity); err != nil {
		return fmt.Errorf("return escrowed units: %w", err)
	}

	balance, err := u.Assets.BalanceOf(ctx, previous.AssetContract, previous.AssetID, previous.Owner)
	if err == nil && balance < quantity {
		err = domainerrors.ErrInsufficientBalance
	}
	if err == nil {
		err = u.Assets.Transfer(ctx, previous.AssetContract, previous.Owner, u.MarketCustody, previous.AssetID, quantity)
		if err != nil {
			err = fmt.Errorf("re-escrow units: %w", err)
		}
	}
	if err != nil {
		if undoErr := u.Assets.Transfer(ctx, previous.AssetContract, previous.Owner, u.MarketCustody, previous.AssetID, previous.Quantity); undoErr != nil {
			logger.Error("custody restore failed after escrow exchange failure",
				"event", "update_listing_custody_restore_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", previous.ListingID,
				"error", undoErr.Error(),
			)
		}
		return err
	}
	return nil
}

func (u UpdateListingUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

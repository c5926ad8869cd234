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
)

// SaleExecutor is the shared tail of the purchase and accept-offer paths.
// Callers hold the module call guard; the executor itself only sequences
// state mutation, asset transfer, and payout.
type SaleExecutor struct {
	Listings      ports.ListingRepository
	Assets        ports.AssetAdapter
	Payouts       ports.PayoutService
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	MarketCustody string
	Logger        *slog.Logger
}

// Execute settles a sale:
// 1) decrement listing quantity (never below zero)
// 2) delete exhausted listings and their reverse index BEFORE payout,
//    closing the re-entrancy window
// 3) transfer the asset from custody to the buyer
// 4) route the full sale amount through the royalty distributor.
// Any external failure restores the pre-sale listing state.
func (e SaleExecutor) Execute(
	ctx context.Context,
	listing entities.Listing,
	buyer string,
	quantity uint64,
	totalPrice uint64,
) (entities.Listing, error) {
	logger := application.ResolveLogger(e.Logger)

	if quantity == 0 {
		return entities.Listing{}, domainerrors.ErrZeroQuantity
	}
	if quantity > listing.Quantity {
		return entities.Listing{}, domainerrors.ErrInsufficientListingQuantity
	}

	previous := listing
	listing.Quantity -= quantity
	listing.UpdatedAt = e.now()

	exhausted := listing.Quantity == 0
	if exhausted {
		if err := e.Listings.DeleteListing(ctx, listing.ListingID); err != nil {
			return entities.Listing{}, err
		}
	} else {
		if err := e.Listings.UpdateListing(ctx, listing); err != nil {
			return entities.Listing{}, err
		}
	}

	if err := e.Assets.Transfer(ctx, listing.AssetContract, e.MarketCustody, buyer, listing.AssetID, quantity); err != nil {
		e.restore(ctx, previous, exhausted)
		return entities.Listing{}, fmt.Errorf("deliver asset: %w", err)
	}

	err := e.Payouts.Payout(ctx, previous.Owner, totalPrice, ports.SaleListing{
		ListingID:     previous.ListingID,
		AssetKind:     previous.AssetKind,
		AssetContract: previous.AssetContract,
		AssetID:       previous.AssetID,
		Seller:        previous.Owner,
	})
	if err != nil {
		if undoErr := e.Assets.Transfer(ctx, listing.AssetContract, buyer, e.MarketCustody, listing.AssetID, quantity); undoErr != nil {
			logger.Error("asset clawback failed after payout failure",
				"event", "sale_clawback_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", previous.ListingID,
				"buyer", buyer,
				"error", undoErr.Error(),
			)
		}
		e.restore(ctx, previous, exhausted)
		return entities.Listing{}, fmt.Errorf("payout: %w", err)
	}

	appendFact(ctx, e.Outbox, e.IDGen, e.Logger, listing.UpdatedAt, saleExecutedEventType,
		strconv.FormatUint(previous.ListingID, 10), map[string]any{
			"listing_id":     previous.ListingID,
			"asset_contract": previous.AssetContract,
			"asset_id":       previous.AssetID,
			"seller":         previous.Owner,
			"buyer":          buyer,
			"quantity":       quantity,
			"total_price":    totalPrice,
			"remaining":      listing.Quantity,
		})

	logger.Info("sale executed",
		"event", "sale_executed",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"listing_id", previous.ListingID,
		"seller", previous.Owner,
		"buyer", buyer,
		"quantity", quantity,
		"total_price", totalPrice,
		"remaining", listing.Quantity,
	)
	return listing, nil
}

func (e SaleExecutor) restore(ctx context.Context, previous entities.Listing, wasDeleted bool) {
	var err error
	if wasDeleted {
		err = e.Listings.RestoreListing(ctx, previous)
	} else {
		err = e.Listings.UpdateListing(ctx, previous)
	}
	if err != nil {
		application.ResolveLogger(e.Logger).Error("listing restore failed after sale failure",
			"event", "sale_rollback_failed",
			"module", "marketplace-trading/trading-service",
			"layer", "application",
			"listing_id", previous.ListingID,
			"error", err.Error(),
		)
	}
}

func (e SaleExecutor) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock.Now().UTC()
}

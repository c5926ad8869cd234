package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	application "treehauz/contexts/marketplace-trading/trading-service/application"
	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
	"treehauz/internal/shared/guard"
)

type CreateListingCommand struct {
	AssetContract string
	AssetID       string
	Seller        string
	Quantity      uint64
	UnitPrice     uint64
}

type CreateListingResult struct {
	Listing entities.Listing
}

type CreateListingUseCase struct {
	Listings        ports.ListingRepository
	Assets          ports.AssetAdapter
	Vault           ports.ValueVault
	Guard           ports.ActivityGuard
	Outbox          ports.OutboxWriter
	CallGuard       *guard.CallGuard
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	MinListingPrice uint64
	MarketCustody   string
	Logger          *slog.Logger
}

// Execute creates a listing and escrows the asset:
// 1) pause + price-floor + quantity validation
// 2) adapter balance check
// 3) listing row + reverse index insertion
// 4) asset transfer seller -> market custody (insertion undone on failure).
func (u CreateListingUseCase) Execute(ctx context.Context, cmd CreateListingCommand) (CreateListingResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.AssetContract) == "" ||
		strings.TrimSpace(cmd.AssetID) == "" ||
		strings.TrimSpace(cmd.Seller) == "" {
		return CreateListingResult{}, domainerrors.ErrInvalidReference
	}
	if err := u.Guard.EnsureActive(ctx, cmd.Seller); err != nil {
		return CreateListingResult{}, err
	}
	if cmd.UnitPrice < u.MinListingPrice {
		return CreateListingResult{}, domainerrors.ErrPriceBelowFloor
	}

	kind, err := u.Assets.KindOf(ctx, cmd.AssetContract)
	if err != nil {
		return CreateListingResult{}, fmt.Errorf("resolve asset kind: %w", err)
	}
	quantity := entities.NormalizeQuantity(kind, cmd.Quantity)
	if quantity == 0 {
		return CreateListingResult{}, domainerrors.ErrZeroQuantity
	}

	balance, err := u.Assets.BalanceOf(ctx, cmd.AssetContract, cmd.AssetID, cmd.Seller)
	if err != nil {
		return CreateListingResult{}, fmt.Errorf("query seller balance: %w", err)
	}
	if balance < quantity {
		return CreateListingResult{}, domainerrors.ErrInsufficientBalance
	}

	if !u.CallGuard.Enter() {
		return CreateListingResult{}, domainerrors.ErrReentrantCall
	}
	defer u.CallGuard.Exit()

	now := u.now()
	listing, err := u.Listings.CreateListing(ctx, entities.Listing{
		AssetKind:     kind,
		AssetContract: cmd.AssetContract,
		AssetID:       cmd.AssetID,
		Owner:         cmd.Seller,
		Quantity:      quantity,
		UnitPrice:     cmd.UnitPrice,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return CreateListingResult{}, err
	}

	// Escrow-on-list: the asset moves into custody, not merely referenced.
	if err := u.Assets.Transfer(ctx, cmd.AssetContract, cmd.Seller, u.MarketCustody, cmd.AssetID, quantity); err != nil {
		if undoErr := u.Listings.DeleteListing(ctx, listing.ListingID); undoErr != nil {
			logger.Error("listing rollback failed after escrow failure",
				"event", "create_listing_rollback_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", listing.ListingID,
				"error", undoErr.Error(),
			)
		}
		return CreateListingResult{}, fmt.Errorf("escrow asset: %w", err)
	}

	appendFact(ctx, u.Outbox, u.IDGen, u.Logger, now, listingCreatedEventType,
		strconv.FormatUint(listing.ListingID, 10), map[string]any{
			"listing_id":     listing.ListingID,
			"asset_contract": listing.AssetContract,
			"asset_id":       listing.AssetID,
			"owner":          listing.Owner,
			"quantity":       listing.Quantity,
			"unit_price":     listing.UnitPrice,
		})

	logger.Info("listing created",
		"event", "listing_created",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"listing_id", listing.ListingID,
		"asset_contract", listing.AssetContract,
		"asset_id", listing.AssetID,
		"owner", listing.Owner,
		"quantity", listing.Quantity,
		"unit_price", listing.UnitPrice,
	)
	return CreateListingResult{Listing: listing}, nil
}

func (u CreateListingUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

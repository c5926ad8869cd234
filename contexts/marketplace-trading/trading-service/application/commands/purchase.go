package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "treehauz/contexts/marketplace-trading/trading-service/application"
	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
	"treehauz/internal/shared/guard"
)

type PurchaseCommand struct {
	ListingID uint64
	Buyer     string
	Quantity  uint64
	// AmountPaid is the value attached to the purchase. It must cover both
	// the price floor and the asking total for the requested quantity.
	AmountPaid uint64
}

type PurchaseResult struct {
	Listing  entities.Listing
	Quantity uint64
	Paid     uint64
}

type PurchaseUseCase struct {
	Listings        ports.ListingRepository
	Vault           ports.ValueVault
	Guard           ports.ActivityGuard
	CallGuard       *guard.CallGuard
	MinListingPrice uint64
	Sale            SaleExecutor
	Logger          *slog.Logger
}

// Execute buys quantity units from a listing at its asking price. The
// attached value is accepted into the vault first; a failed sale refunds it
// in full.
func (u PurchaseUseCase) Execute(ctx context.Context, cmd PurchaseCommand) (PurchaseResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.Buyer) == "" {
		return PurchaseResult{}, domainerrors.ErrInvalidReference
	}

	listing, err := u.Listings.GetListing(ctx, cmd.ListingID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if err := u.Guard.EnsureActive(ctx, listing.Owner); err != nil {
		return PurchaseResult{}, err
	}

	quantity := entities.NormalizeQuantity(listing.AssetKind, cmd.Quantity)
	if quantity == 0 {
		return PurchaseResult{}, domainerrors.ErrZeroQuantity
	}
	if quantity > listing.Quantity {
		return PurchaseResult{}, domainerrors.ErrInsufficientListingQuantity
	}
	asking, ok := listing.TotalPrice(quantity)
	if !ok || cmd.AmountPaid < u.MinListingPrice || cmd.AmountPaid < asking {
		return PurchaseResult{}, domainerrors.ErrInvalidPurchasePrice
	}

	if !u.CallGuard.Enter() {
		return PurchaseResult{}, domainerrors.ErrReentrantCall
	}
	defer u.CallGuard.Exit()

	if err := u.Vault.Deposit(ctx, cmd.Buyer, cmd.AmountPaid); err != nil {
		return PurchaseResult{}, fmt.Errorf("accept purchase funds: %w", err)
	}

	remaining, err := u.Sale.Execute(ctx, listing, cmd.Buyer, quantity, cmd.AmountPaid)
	if err != nil {
		if undoErr := u.Vault.Release(ctx, cmd.Buyer, cmd.AmountPaid); undoErr != nil {
			logger.Error("purchase refund failed after sale failure",
				"event", "purchase_refund_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", cmd.ListingID,
				"buyer", cmd.Buyer,
				"error", undoErr.Error(),
			)
		}
		return PurchaseResult{}, err
	}

	return PurchaseResult{Listing: remaining, Quantity: quantity, Paid: cmd.AmountPaid}, nil
}

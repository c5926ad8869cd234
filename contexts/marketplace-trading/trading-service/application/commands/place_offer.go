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

type PlaceOfferCommand struct {
	ListingID uint64
	Offeror   string
	Quantity  uint64
	UnitPrice uint64
	// Amount is the value attached to the offer; it is escrowed in the vault
	// until the offer is accepted or cancelled.
	Amount uint64
}

type PlaceOfferResult struct {
	Offer    entities.Offer
	Replaced bool
}

type PlaceOfferUseCase struct {
	Listings        ports.ListingRepository
	Offers          ports.OfferRepository
	Vault           ports.ValueVault
	Guard           ports.ActivityGuard
	Outbox          ports.OutboxWriter
	CallGuard       *guard.CallGuard
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	MinListingPrice uint64
	Logger          *slog.Logger
}

// Execute stores or overwrites the caller's offer on a listing. The attached
// value is deposited first; the offer book is then overwritten and the prior
// escrow, if any, refunded, so cancel-after-replace can only ever refund the
// latest amount.
func (u PlaceOfferUseCase) Execute(ctx context.Context, cmd PlaceOfferCommand) (PlaceOfferResult, error) {
	logger := application.ResolveLogger(u.Logger)

	listing, err := u.Listings.GetListing(ctx, cmd.ListingID)
	if err != nil {
		return PlaceOfferResult{}, err
	}
	if err := u.Guard.EnsureActive(ctx, listing.Owner); err != nil {
		return PlaceOfferResult{}, err
	}

	quantity := entities.NormalizeQuantity(listing.AssetKind, cmd.Quantity)
	if quantity == 0 {
		return PlaceOfferResult{}, domainerrors.ErrZeroQuantity
	}
	if quantity > listing.Quantity {
		return PlaceOfferResult{}, domainerrors.ErrInsufficientListingQuantity
	}
	asking, ok := entities.TotalValue(quantity, cmd.UnitPrice)
	if !ok || cmd.Amount < u.MinListingPrice || cmd.Amount < asking {
		return PlaceOfferResult{}, domainerrors.ErrInvalidOfferAmount
	}

	if !u.CallGuard.Enter() {
		return PlaceOfferResult{}, domainerrors.ErrReentrantCall
	}
	defer u.CallGuard.Exit()

	if err := u.Vault.Deposit(ctx, cmd.Offeror, cmd.Amount); err != nil {
		return PlaceOfferResult{}, fmt.Errorf("escrow offer funds: %w", err)
	}

	offer := entities.Offer{
		ListingID: cmd.ListingID,
		Offeror:   cmd.Offeror,
		Quantity:  quantity,
		UnitPrice: cmd.UnitPrice,
		Escrowed:  cmd.Amount,
		CreatedAt: u.now(),
	}
	previous, replaced, err := u.Offers.PutOffer(ctx, offer)
	if err != nil {
		if undoErr := u.Vault.Release(ctx, cmd.Offeror, cmd.Amount); undoErr != nil {
			logger.Error("escrow refund failed after offer write failure",
				"event", "place_offer_rollback_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", cmd.ListingID,
				"offeror", cmd.Offeror,
				"error", undoErr.Error(),
			)
		}
		return PlaceOfferResult{}, err
	}

	// Overwriting releases the superseded escrow; only the latest offer's
	// funds remain held.
	if replaced && previous.Escrowed > 0 {
		if err := u.Vault.Release(ctx, previous.Offeror, previous.Escrowed); err != nil {
			if _, _, undoErr := u.Offers.PutOffer(ctx, previous); undoErr != nil {
				logger.Error("offer restore failed after refund failure",
					"event", "place_offer_restore_failed",
					"module", "marketplace-trading/trading-service",
					"layer", "application",
					"listing_id", cmd.ListingID,
					"offeror", cmd.Offeror,
					"error", undoErr.Error(),
				)
			} else if undoErr := u.Vault.Release(ctx, cmd.Offeror, cmd.Amount); undoErr != nil {
				logger.Error("new escrow refund failed after prior refund failure",
					"event", "place_offer_rollback_failed",
					"module", "marketplace-trading/trading-service",
					"layer", "application",
					"listing_id", cmd.ListingID,
					"offeror", cmd.Offeror,
					"error", undoErr.Error(),
				)
			}
			return PlaceOfferResult{}, fmt.Errorf("refund superseded offer: %w", err)
		}
	}

	appendFact(ctx, u.Outbox, u.IDGen, u.Logger, offer.CreatedAt, offerCreatedEventType,
		strconv.FormatUint(cmd.ListingID, 10), map[string]any{
			"listing_id": offer.ListingID,
			"offeror":    offer.Offeror,
			"quantity":   offer.Quantity,
			"unit_price": offer.UnitPrice,
			"escrowed":   offer.Escrowed,
			"replaced":   replaced,
		})

	logger.Info("offer placed",
		"event", "offer_placed",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"listing_id", offer.ListingID,
		"offeror", offer.Offeror,
		"quantity", offer.Quantity,
		"unit_price", offer.UnitPrice,
		"replaced", replaced,
	)
	return PlaceOfferResult{Offer: offer, Replaced: replaced}, nil
}

func (u PlaceOfferUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

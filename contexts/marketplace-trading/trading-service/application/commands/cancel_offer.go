package commands

import (
	"context"
	"errors"
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

type CancelOfferCommand struct {
	ListingID uint64
	Offeror   string
	Caller    string
}

type CancelOfferResult struct {
	Refunded uint64
}

type CancelOfferUseCase struct {
	Listings  ports.ListingRepository
	Offers    ports.OfferRepository
	Vault     ports.ValueVault
	Outbox    ports.OutboxWriter
	CallGuard *guard.CallGuard
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// Execute cancels an offer and refunds its escrow. The offer record is
// deleted before the vault refund is requested; a re-entrant cancel finds no
// offer and cannot extract a second refund.
func (u CancelOfferUseCase) Execute(ctx context.Context, cmd CancelOfferCommand) (CancelOfferResult, error) {
	logger := application.ResolveLogger(u.Logger)

	offer, found, err := u.Offers.GetOffer(ctx, cmd.ListingID, cmd.Offeror)
	if err != nil {
		return CancelOfferResult{}, err
	}
	if !found {
		return CancelOfferResult{}, domainerrors.ErrOfferNotFound
	}
	if err := u.authorize(ctx, cmd, offer); err != nil {
		return CancelOfferResult{}, err
	}

	if !u.CallGuard.Enter() {
		return CancelOfferResult{}, domainerrors.ErrReentrantCall
	}
	defer u.CallGuard.Exit()

	deleted, err := u.Offers.DeleteOffer(ctx, cmd.ListingID, cmd.Offeror)
	if err != nil {
		return CancelOfferResult{}, err
	}

	if err := u.Vault.Release(ctx, deleted.Offeror, deleted.Escrowed); err != nil {
		if undoErr := u.Offers.RestoreOffer(ctx, deleted); undoErr != nil {
			logger.Error("offer restore failed after refund failure",
				"event", "cancel_offer_rollback_failed",
				"module", "marketplace-trading/trading-service",
				"layer", "application",
				"listing_id", cmd.ListingID,
				"offeror", cmd.Offeror,
				"error", undoErr.Error(),
			)
		}
		return CancelOfferResult{}, fmt.Errorf("refund offer escrow: %w", err)
	}

	appendFact(ctx, u.Outbox, u.IDGen, u.Logger, u.now(), offerCancelledEventType,
		strconv.FormatUint(cmd.ListingID, 10), map[string]any{
			"listing_id": deleted.ListingID,
			"offeror":    deleted.Offeror,
			"refunded":   deleted.Escrowed,
		})

	logger.Info("offer cancelled",
		"event", "offer_cancelled",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"listing_id", deleted.ListingID,
		"offeror", deleted.Offeror,
		"refunded", deleted.Escrowed,
	)
	return CancelOfferResult{Refunded: deleted.Escrowed}, nil
}

// authorize admits the offeror, or the listing owner when the listing is
// still live. A dangling offer on a removed listing stays cancellable by its
// offeror.
func (u CancelOfferUseCase) authorize(ctx context.Context, cmd CancelOfferCommand, offer entities.Offer) error {
	if cmd.Caller == offer.Offeror {
		return nil
	}
	listing, err := u.Listings.GetListing(ctx, cmd.ListingID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrListingNotFound) {
			return domainerrors.ErrNotOfferParticipant
		}
		return err
	}
	if cmd.Caller != listing.Owner {
		return domainerrors.ErrNotOfferParticipant
	}
	return nil
}

func (u CancelOfferUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

package queries

import (
	"context"
	"log/slog"

	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
)

type ListOffersQuery struct {
	ListingID uint64
}

type ListOffersResult struct {
	Items []entities.Offer
}

type ListOffersUseCase struct {
	Offers ports.OfferRepository
	Logger *slog.Logger
}

func (u ListOffersUseCase) Execute(ctx context.Context, query ListOffersQuery) (ListOffersResult, error) {
	items, err := u.Offers.ListOffersByListing(ctx, query.ListingID)
	if err != nil {
		return ListOffersResult{}, err
	}
	return ListOffersResult{Items: items}, nil
}

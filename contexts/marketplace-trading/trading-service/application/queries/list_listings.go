package queries

import (
	"context"
	"log/slog"

	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
)

type ListListingsQuery struct {
	Owner  string
	Cursor string
	Limit  int
}

type ListListingsResult struct {
	Items      []entities.Listing
	NextCursor string
}

type ListListingsUseCase struct {
	Listings ports.ListingRepository
	Logger   *slog.Logger
}

func (u ListListingsUseCase) Execute(ctx context.Context, query ListListingsQuery) (ListListingsResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	items, nextCursor, err := u.Listings.ListListings(ctx, ports.ListingFilter{
		Owner:  query.Owner,
		Cursor: query.Cursor,
		Limit:  limit,
	})
	if err != nil {
		return ListListingsResult{}, err
	}
	return ListListingsResult{Items: items, NextCursor: nextCursor}, nil
}

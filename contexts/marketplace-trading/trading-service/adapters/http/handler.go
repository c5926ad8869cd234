package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"treehauz/contexts/marketplace-trading/trading-service/application/commands"
	"treehauz/contexts/marketplace-trading/trading-service/application/queries"
	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	httptransport "treehauz/contexts/marketplace-trading/trading-service/transport/http"
)

type Handler struct {
	CreateListing commands.CreateListingUseCase
	UpdateListing commands.UpdateListingUseCase
	RemoveListing commands.RemoveListingUseCase
	PlaceOffer    commands.PlaceOfferUseCase
	CancelOffer   commands.CancelOfferUseCase
	Purchase      commands.PurchaseUseCase
	AcceptOffer   commands.AcceptOfferUseCase
	GetListing    queries.GetListingUseCase
	ListListings  queries.ListListingsUseCase
	ListOffers    queries.ListOffersUseCase
	Logger        *slog.Logger
}

func (h Handler) CreateListingHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreateListingRequest,
) (httptransport.ListingResponse, error) {
	result, err := h.CreateListing.Execute(ctx, commands.CreateListingCommand{
		AssetContract: req.AssetContract,
		AssetID:       req.AssetID,
		Seller:        userID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
	})
	if err != nil {
		return httptransport.ListingResponse{}, err
	}
	return httptransport.ListingResponse{Listing: mapListing(result.Listing)}, nil
}

func (h Handler) UpdateListingHandler(
	ctx context.Context,
	userID string,
	listingID uint64,
	req httptransport.UpdateListingRequest,
) (httptransport.UpdateListingResponse, error) {
	result, err := h.UpdateListing.Execute(ctx, commands.UpdateListingCommand{
		ListingID:   listingID,
		Caller:      userID,
		NewQuantity: req.Quantity,
		NewPrice:    req.UnitPrice,
	})
	if err != nil {
		return httptransport.UpdateListingResponse{}, err
	}
	return httptransport.UpdateListingResponse{
		Listing: mapListing(result.Listing),
		Removed: result.Removed,
	}, nil
}

func (h Handler) RemoveListingHandler(ctx context.Context, userID string, listingID uint64) error {
	_, err := h.RemoveListing.Execute(ctx, commands.RemoveListingCommand{
		ListingID: listingID,
		Caller:    userID,
	})
	return err
}

func (h Handler) PlaceOfferHandler(
	ctx context.Context,
	userID string,
	listingID uint64,
	req httptransport.PlaceOfferRequest,
) (httptransport.OfferResponse, error) {
	result, err := h.PlaceOffer.Execute(ctx, commands.PlaceOfferCommand{
		ListingID: listingID,
		Offeror:   userID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Amount:    req.Amount,
	})
	if err != nil {
		return httptransport.OfferResponse{}, err
	}
	return httptransport.OfferResponse{
		Offer:    mapOffer(result.Offer),
		Replaced: result.Replaced,
	}, nil
}

func (h Handler) CancelOfferHandler(
	ctx context.Context,
	userID string,
	listingID uint64,
	offeror string,
) (httptransport.CancelOfferResponse, error) {
	result, err := h.CancelOffer.Execute(ctx, commands.CancelOfferCommand{
		ListingID: listingID,
		Offeror:   offeror,
		Caller:    userID,
	})
	if err != nil {
		return httptransport.CancelOfferResponse{}, err
	}
	return httptransport.CancelOfferResponse{Refunded: result.Refunded}, nil
}

func (h Handler) PurchaseHandler(
	ctx context.Context,
	userID string,
	listingID uint64,
	req httptransport.PurchaseRequest,
) (httptransport.SaleResponse, error) {
	result, err := h.Purchase.Execute(ctx, commands.PurchaseCommand{
		ListingID:  listingID,
		Buyer:      userID,
		Quantity:   req.Quantity,
		AmountPaid: req.AmountPaid,
	})
	if err != nil {
		return httptransport.SaleResponse{}, err
	}
	return httptransport.SaleResponse{
		ListingID: result.Listing.ListingID,
		Buyer:     userID,
		Quantity:  result.Quantity,
		Paid:      result.Paid,
	}, nil
}

func (h Handler) AcceptOfferHandler(
	ctx context.Context,
	userID string,
	listingID uint64,
	offeror string,
) (httptransport.SaleResponse, error) {
	result, err := h.AcceptOffer.Execute(ctx, commands.AcceptOfferCommand{
		ListingID: listingID,
		Offeror:   offeror,
		Caller:    userID,
	})
	if err != nil {
		return httptransport.SaleResponse{}, err
	}
	return httptransport.SaleResponse{
		ListingID: result.Listing.ListingID,
		Buyer:     offeror,
		Quantity:  result.Quantity,
		Paid:      result.Paid,
	}, nil
}

func (h Handler) GetListingHandler(ctx context.Context, listingID uint64) (httptransport.ListingResponse, error) {
	result, err := h.GetListing.Execute(ctx, queries.GetListingQuery{ListingID: listingID})
	if err != nil {
		return httptransport.ListingResponse{}, err
	}
	return httptransport.ListingResponse{Listing: mapListing(result.Listing)}, nil
}

func (h Handler) ListListingsHandler(
	ctx context.Context,
	owner string,
	cursor string,
	limit int,
) (httptransport.ListListingsResponse, error) {
	result, err := h.ListListings.Execute(ctx, queries.ListListingsQuery{
		Owner:  owner,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		return httptransport.ListListingsResponse{}, err
	}
	items := make([]httptransport.ListingDTO, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, mapListing(item))
	}
	return httptransport.ListListingsResponse{
		Items:      items,
		NextCursor: result.NextCursor,
	}, nil
}

func (h Handler) ListOffersHandler(ctx context.Context, listingID uint64) (httptransport.ListOffersResponse, error) {
	result, err := h.ListOffers.Execute(ctx, queries.ListOffersQuery{ListingID: listingID})
	if err != nil {
		return httptransport.ListOffersResponse{}, err
	}
	items := make([]httptransport.OfferDTO, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, mapOffer(item))
	}
	return httptransport.ListOffersResponse{Items: items}, nil
}

func mapListing(item entities.Listing) httptransport.ListingDTO {
	return httptransport.ListingDTO{
		ListingID:     item.ListingID,
		AssetKind:     string(item.AssetKind),
		AssetContract: item.AssetContract,
		AssetID:       item.AssetID,
		Owner:         item.Owner,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapOffer(item entities.Offer) httptransport.OfferDTO {
	return httptransport.OfferDTO{
		ListingID: item.ListingID,
		Offeror:   item.Offeror,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Escrowed:  item.Escrowed,
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

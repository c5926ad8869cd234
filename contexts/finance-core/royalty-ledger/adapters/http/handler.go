package httpadapter

import (
	"context"
	"log/slog"

	"treehauz/contexts/finance-core/royalty-ledger/application"
	httptransport "treehauz/contexts/finance-core/royalty-ledger/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ClaimRoyaltyHandler(ctx context.Context, userID string) (httptransport.ClaimResponse, error) {
	amount, err := h.Service.ClaimRoyalty(ctx, userID)
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	return httptransport.ClaimResponse{Amount: amount}, nil
}

func (h Handler) ClaimSalesHandler(ctx context.Context, userID string) (httptransport.ClaimResponse, error) {
	amount, err := h.Service.ClaimSales(ctx, userID)
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	return httptransport.ClaimResponse{Amount: amount}, nil
}

func (h Handler) GetAccountHandler(ctx context.Context, owner string) (httptransport.AccountResponse, error) {
	view, err := h.Service.GetAccount(ctx, owner)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	return httptransport.AccountResponse{
		Owner:               view.Account.Owner,
		UnclaimedSales:      view.Account.UnclaimedSales,
		UnclaimedRoyalty:    view.UnclaimedRoyalty,
		ClaimedRoyaltyTotal: view.Account.ClaimedRoyaltyTotal,
	}, nil
}

func (h Handler) UpdateFeeHandler(ctx context.Context, userID string, req httptransport.UpdateFeeRequest) error {
	return h.Service.UpdateFee(ctx, userID, req.FeeBps)
}

func (h Handler) ResetTokenRoyaltyHandler(
	ctx context.Context,
	userID string,
	req httptransport.ResetTokenRoyaltyRequest,
) error {
	return h.Service.ResetTokenRoyalty(ctx, userID, req.AssetContract, req.AssetID)
}

package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ClaimResponse struct {
	Amount uint64 `json:"amount"`
}

type AccountResponse struct {
	Owner               string `json:"owner"`
	UnclaimedSales      uint64 `json:"unclaimed_sales"`
	UnclaimedRoyalty    uint64 `json:"unclaimed_royalty"`
	ClaimedRoyaltyTotal uint64 `json:"claimed_royalty_total"`
}

type UpdateFeeRequest struct {
	FeeBps uint64 `json:"fee_bps"`
}

type ResetTokenRoyaltyRequest struct {
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
}

type ReceiverBalanceDTO struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type UnclaimedRoyaltyErrorResponse struct {
	Code          string               `json:"code"`
	Message       string               `json:"message"`
	AssetContract string               `json:"asset_contract"`
	AssetID       string               `json:"asset_id"`
	Receivers     []ReceiverBalanceDTO `json:"receivers"`
}

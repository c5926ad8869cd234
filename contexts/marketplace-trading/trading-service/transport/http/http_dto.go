package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateListingRequest struct {
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
	Quantity      uint64 `json:"quantity"`
	UnitPrice     uint64 `json:"unit_price"`
}

type UpdateListingRequest struct {
	Quantity  uint64 `json:"quantity"`
	UnitPrice uint64 `json:"unit_price"`
}

type PlaceOfferRequest struct {
	Quantity  uint64 `json:"quantity"`
	UnitPrice uint64 `json:"unit_price"`
	Amount    uint64 `json:"amount"`
}

type PurchaseRequest struct {
	Quantity   uint64 `json:"quantity"`
	AmountPaid uint64 `json:"amount_paid"`
}

type ListingDTO struct {
	ListingID     uint64 `json:"listing_id"`
	AssetKind     string `json:"asset_kind"`
	AssetContract string `json:"asset_contract"`
	AssetID       string `json:"asset_id"`
	Owner         string `json:"owner"`
	Quantity      uint64 `json:"quantity"`
	UnitPrice     uint64 `json:"unit_price"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type OfferDTO struct {
	ListingID uint64 `json:"listing_id"`
	Offeror   string `json:"offeror"`
	Quantity  uint64 `json:"quantity"`
	UnitPrice uint64 `json:"unit_price"`
	Escrowed  uint64 `json:"escrowed"`
	CreatedAt string `json:"created_at"`
}

type ListingResponse struct {
	Listing ListingDTO `json:"listing"`
}

type ListListingsResponse struct {
	Items      []ListingDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type OfferResponse struct {
	Offer    OfferDTO `json:"offer"`
	Replaced bool     `json:"replaced"`
}

type ListOffersResponse struct {
	Items []OfferDTO `json:"items"`
}

type CancelOfferResponse struct {
	Refunded uint64 `json:"refunded"`
}

type SaleResponse struct {
	ListingID uint64 `json:"listing_id"`
	Buyer     string `json:"buyer"`
	Quantity  uint64 `json:"quantity"`
	Paid      uint64 `json:"paid"`
}

type UpdateListingResponse struct {
	Listing ListingDTO `json:"listing"`
	Removed bool       `json:"removed"`
}

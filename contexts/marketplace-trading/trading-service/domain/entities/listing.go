package entities

import (
	"math"
	"time"
)

// AssetKind distinguishes the two in-house asset contracts: single-unit
// assets carry exactly one indivisible unit per asset id, multi-unit assets
// carry a fungible quantity per asset id.
type AssetKind string

const (
	AssetKindSingle AssetKind = "single"
	AssetKindMulti  AssetKind = "multi"
)

// Listing is an active offer-to-sell a fixed quantity of one asset at a fixed
// unit price. The asset itself is held in marketplace custody while the
// listing is active.
type Listing struct {
	ListingID     uint64
	AssetKind     AssetKind
	AssetContract string
	AssetID       string
	Owner         string
	Quantity      uint64
	UnitPrice     uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (l Listing) Active() bool {
	return l.Quantity > 0
}

// TotalValue multiplies quantity by unit price, reporting overflow instead
// of silently wrapping.
func TotalValue(quantity, unitPrice uint64) (uint64, bool) {
	if quantity == 0 || unitPrice == 0 {
		return 0, true
	}
	if quantity > math.MaxUint64/unitPrice {
		return 0, false
	}
	return quantity * unitPrice, true
}

// TotalPrice is the asking price for the given quantity of this listing;
// ok is false when the total would overflow uint64.
func (l Listing) TotalPrice(quantity uint64) (uint64, bool) {
	return TotalValue(quantity, l.UnitPrice)
}

// NormalizeQuantity forces single-unit assets to exactly one unit; multi-unit
// quantities pass through unchanged.
func NormalizeQuantity(kind AssetKind, requested uint64) uint64 {
	if kind == AssetKindSingle {
		return 1
	}
	return requested
}

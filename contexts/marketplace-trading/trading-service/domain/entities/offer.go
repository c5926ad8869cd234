package entities

import "time"

// Offer is a buyer-initiated bid against a listing, pending owner acceptance.
// At most one offer exists per (listing, offeror); a new offer overwrites the
// prior one. Escrowed is the amount held by the value vault for this offer.
type Offer struct {
	ListingID uint64
	Offeror   string
	Quantity  uint64
	UnitPrice uint64
	Escrowed  uint64
	CreatedAt time.Time
}

// AskingTotal is the exact payment an acceptance requires; ok is false when
// the total would overflow uint64.
func (o Offer) AskingTotal() (uint64, bool) {
	return TotalValue(o.Quantity, o.UnitPrice)
}

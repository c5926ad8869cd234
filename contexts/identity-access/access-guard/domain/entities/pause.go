package entities

import "time"

// SellerPause suspends one seller's listings and offers without touching the
// rest of the marketplace.
type SellerPause struct {
	Seller    string
	Paused    bool
	UpdatedAt time.Time
}

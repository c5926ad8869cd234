package entities

import "time"

// Account is a pull-payment ledger row. UnclaimedSales is the deferred sale
// proceeds balance; ClaimedRoyaltyTotal is a lifetime counter kept for
// reporting, the per-pool claim state lives on the pools themselves.
type Account struct {
	Owner               string
	UnclaimedSales      uint64
	ClaimedRoyaltyTotal uint64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

package entities

import "time"

// MaxBasisPoints is the denominator for every fee and share computation.
const MaxBasisPoints uint64 = 10_000

// RoyaltyReceiver is one leg of a token's royalty split.
type RoyaltyReceiver struct {
	Account  string
	ShareBps uint64
}

// RoyaltyPool accumulates royalty value for one token. Receivers are
// snapshotted at the pool's first accrual so later metadata edits cannot
// reroute money already owed. ClaimedBy records how much each receiver has
// already pulled out of the pool.
type RoyaltyPool struct {
	AssetContract string
	AssetID       string
	Accrued       uint64
	Receivers     []RoyaltyReceiver
	ClaimedBy     map[string]uint64
	UpdatedAt     time.Time
}

// UnclaimedFor answers how much of the pool the account may still claim:
// its basis-point share of everything accrued, minus what it already took.
func (p RoyaltyPool) UnclaimedFor(account string) uint64 {
	var shareBps uint64
	for _, receiver := range p.Receivers {
		if receiver.Account == account {
			shareBps = receiver.ShareBps
			break
		}
	}
	if shareBps == 0 {
		return 0
	}
	entitled := p.Accrued * shareBps / MaxBasisPoints
	claimed := p.ClaimedBy[account]
	if entitled <= claimed {
		return 0
	}
	return entitled - claimed
}

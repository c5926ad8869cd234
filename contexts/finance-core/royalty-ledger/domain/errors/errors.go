package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNothingToClaim           = errors.New("nothing to claim")
	ErrInvalidFeeRate           = errors.New("fee rate must stay below one hundred percent")
	ErrInvalidReceiverSplit     = errors.New("royalty receiver split is invalid")
	ErrInvalidAccount           = errors.New("account reference is invalid")
	ErrPoolNotFound             = errors.New("royalty pool not found")
	ErrReentrantCall            = errors.New("re-entrant ledger call rejected")
	ErrRepositoryInvariantBroke = errors.New("ledger repository invariant broken")
)

// ReceiverBalance is one receiver's outstanding entitlement in a pool.
type ReceiverBalance struct {
	Account string
	Amount  uint64
}

// UnclaimedRoyaltyError rejects a pool reset while receivers still hold
// unclaimed value, itemizing who is owed what.
type UnclaimedRoyaltyError struct {
	AssetContract string
	AssetID       string
	Receivers     []ReceiverBalance
}

func (e *UnclaimedRoyaltyError) Error() string {
	return fmt.Sprintf(
		"royalty pool %s/%s still owes %d receiver(s)",
		e.AssetContract, e.AssetID, len(e.Receivers),
	)
}

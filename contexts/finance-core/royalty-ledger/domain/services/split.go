package services

import (
	"strings"

	"treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	domainerrors "treehauz/contexts/finance-core/royalty-ledger/domain/errors"
)

// Split is where the post-fee remainder of a sale goes.
type Split struct {
	ToSeller uint64
	ToPool   uint64
}

// MarketCut is the operator fee on a sale amount, floored.
func MarketCut(amount uint64, feeBps uint64) uint64 {
	return amount * feeBps / entities.MaxBasisPoints
}

// RoyaltyFee is the combined receiver share of the post-fee remainder,
// floored and capped at the remainder itself.
func RoyaltyFee(remainder uint64, receivers []entities.RoyaltyReceiver) uint64 {
	fee := remainder * TotalShareBps(receivers) / entities.MaxBasisPoints
	if fee > remainder {
		return remainder
	}
	return fee
}

func TotalShareBps(receivers []entities.RoyaltyReceiver) uint64 {
	var total uint64
	for _, receiver := range receivers {
		total += receiver.ShareBps
	}
	return total
}

// RouteRemainder applies the primary/secondary market rule. On a primary
// sale with at most one receiver the seller IS the royalty party, so the
// whole remainder goes straight to their sales balance; a primary sale with
// several receivers accrues everything to the pool so each receiver gets its
// share. Secondary sales accrue only the royalty fee and pay the seller the
// rest.
func RouteRemainder(primary bool, receiverCount int, remainder uint64, royaltyFee uint64) Split {
	if primary {
		if receiverCount <= 1 {
			return Split{ToSeller: remainder}
		}
		return Split{ToPool: remainder}
	}
	if royaltyFee > remainder {
		royaltyFee = remainder
	}
	return Split{ToSeller: remainder - royaltyFee, ToPool: royaltyFee}
}

// ValidateReceivers rejects empty accounts, zero shares, duplicate accounts
// and splits whose total exceeds the whole. Claims pay each account its
// first-listed share only, so a duplicate's second share could never be
// paid out.
func ValidateReceivers(receivers []entities.RoyaltyReceiver) error {
	var total uint64
	seen := make(map[string]struct{}, len(receivers))
	for _, receiver := range receivers {
		account := strings.TrimSpace(receiver.Account)
		if account == "" {
			return domainerrors.ErrInvalidReceiverSplit
		}
		if receiver.ShareBps == 0 {
			return domainerrors.ErrInvalidReceiverSplit
		}
		if _, dup := seen[account]; dup {
			return domainerrors.ErrInvalidReceiverSplit
		}
		seen[account] = struct{}{}
		total += receiver.ShareBps
	}
	if total > entities.MaxBasisPoints {
		return domainerrors.ErrInvalidReceiverSplit
	}
	return nil
}

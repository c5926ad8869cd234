package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	domainerrors "treehauz/contexts/finance-core/royalty-ledger/domain/errors"
	"treehauz/contexts/finance-core/royalty-ledger/domain/services"
	"treehauz/contexts/finance-core/royalty-ledger/ports"
	"treehauz/internal/shared/guard"
)

const (
	EventTypeRoyaltyCredited   = "royalty.credited"
	EventTypeRoyaltyClaimed    = "royalty.claimed"
	EventTypeSalesClaimed      = "sales.claimed"
	EventTypePayoutRouted      = "payout.routed"
	EventTypeTokenRoyaltyReset = "token_royalty.reset"
	EventTypeFeeUpdated        = "fee.updated"
)

// SaleReference identifies the sale a payout settles.
type SaleReference struct {
	ListingID     uint64
	AssetContract string
	AssetID       string
}

// AccountView is an account plus its derived pool entitlements.
type AccountView struct {
	Account          entities.Account
	UnclaimedRoyalty uint64
}

// Service is the royalty distributor and pull-payment ledger. Every sale
// amount handed to Payout ends up, in full, as either an immediate vault
// release or a deferred balance; nothing is ever dropped or minted.
type Service struct {
	Ledger ports.LedgerRepository
	Assets ports.AssetAdapter
	Vault  ports.ValueVault
	Guard  ports.ActivityGuard
	Outbox ports.OutboxWriter
	// CallGuard rejects re-entry through the vault while a claim or payout
	// is mid-flight.
	CallGuard *guard.CallGuard
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	// Operator receives the marketplace fee cut.
	Operator string
	Logger   *slog.Logger
}

// Payout routes a completed sale's proceeds. The post-fee remainder is split
// between royalty accrual and the seller's deferred sales balance according
// to the market rules; the operator fee is released within the same call,
// after the routing writes succeed.
func (s Service) Payout(ctx context.Context, seller string, amount uint64, sale SaleReference) error {
	logger := ResolveLogger(s.Logger)
	if strings.TrimSpace(seller) == "" {
		return domainerrors.ErrInvalidAccount
	}
	if amount == 0 {
		return nil
	}

	if s.CallGuard != nil && !s.CallGuard.Enter() {
		return domainerrors.ErrReentrantCall
	}
	defer func() {
		if s.CallGuard != nil {
			s.CallGuard.Exit()
		}
	}()

	now := s.now()
	feeBps, err := s.Ledger.GetFeeBps(ctx)
	if err != nil {
		return err
	}

	fee := services.MarketCut(amount, feeBps)
	remainder := amount - fee

	native, err := s.Assets.IsNative(ctx, sale.AssetContract)
	if err != nil {
		return err
	}

	var credited uint64
	var accrued uint64
	if !native {
		credited, accrued, err = s.routeForeign(ctx, seller, remainder, sale, now)
	} else {
		credited, accrued, err = s.routeNative(ctx, seller, remainder, sale, now)
	}
	if err != nil {
		return err
	}

	// The fee is released only once the ledger writes have landed, so an
	// aborted payout never pays the operator.
	if fee > 0 {
		if err := s.Vault.Release(ctx, s.Operator, fee); err != nil {
			return err
		}
	}

	s.appendFact(ctx, EventTypePayoutRouted, sale.AssetContract+"/"+sale.AssetID, now, map[string]any{
		"listing_id":     sale.ListingID,
		"asset_contract": sale.AssetContract,
		"asset_id":       sale.AssetID,
		"seller":         seller,
		"amount":         amount,
		"fee":            fee,
		"to_seller":      credited,
		"to_pool":        accrued,
	})

	logger.Info("sale payout routed",
		"event", "ledger_payout_routed",
		"module", "finance-core/royalty-ledger",
		"layer", "application",
		"listing_id", sale.ListingID,
		"seller", seller,
		"amount", amount,
		"fee", fee,
		"to_seller", credited,
		"to_pool", accrued,
	)
	return nil
}

// routeForeign handles contracts the marketplace did not mint. Their royalty
// terms come from RoyaltyInfo and are honored with an immediate release; a
// contract that cannot answer simply forfeits its royalty for this sale.
func (s Service) routeForeign(
	ctx context.Context,
	seller string,
	remainder uint64,
	sale SaleReference,
	now time.Time,
) (uint64, uint64, error) {
	logger := ResolveLogger(s.Logger)

	receiver, royalty, ok, err := s.Assets.RoyaltyInfo(ctx, sale.AssetContract, sale.AssetID, remainder)
	if err != nil {
		logger.Warn("foreign royalty lookup failed",
			"event", "ledger_foreign_royalty_lookup_failed",
			"module", "finance-core/royalty-ledger",
			"layer", "application",
			"asset_contract", sale.AssetContract,
			"asset_id", sale.AssetID,
			"error", err.Error(),
		)
		ok = false
	}
	if ok && receiver != "" && royalty > 0 {
		if royalty > remainder {
			royalty = remainder
		}
		if err := s.Vault.Release(ctx, receiver, royalty); err != nil {
			return 0, 0, err
		}
		remainder -= royalty
	}

	if remainder > 0 {
		if err := s.Ledger.CreditSales(ctx, seller, remainder, now); err != nil {
			return 0, 0, err
		}
	}
	return remainder, 0, nil
}

// routeNative handles marketplace-minted contracts: the royalty share of the
// remainder accrues to the token's pool, the rest defers to the seller. A
// primary sale, where the seller is the minter, skips the pool entirely when
// there is at most one receiver.
func (s Service) routeNative(
	ctx context.Context,
	seller string,
	remainder uint64,
	sale SaleReference,
	now time.Time,
) (uint64, uint64, error) {
	receivers, err := s.receiversFor(ctx, sale)
	if err != nil {
		return 0, 0, err
	}
	if err := services.ValidateReceivers(receivers); err != nil {
		return 0, 0, err
	}

	minter, err := s.Assets.MinterOf(ctx, sale.AssetContract, sale.AssetID)
	if err != nil {
		return 0, 0, err
	}
	primary := minter != "" && minter == seller

	royaltyFee := services.RoyaltyFee(remainder, receivers)
	split := services.RouteRemainder(primary, len(receivers), remainder, royaltyFee)

	if split.ToPool > 0 {
		payload, err := json.Marshal(map[string]any{
			"asset_contract": sale.AssetContract,
			"asset_id":       sale.AssetID,
			"amount":         split.ToPool,
			"primary":        primary,
		})
		if err != nil {
			return 0, 0, err
		}
		event, err := s.newEvent(ctx, EventTypeRoyaltyCredited, sale.AssetContract+"/"+sale.AssetID, now, payload)
		if err != nil {
			return 0, 0, err
		}
		if err := s.Ledger.AccrueRoyaltyWithOutbox(
			ctx, sale.AssetContract, sale.AssetID, split.ToPool, receivers, now, event,
		); err != nil {
			return 0, 0, err
		}
	}
	if split.ToSeller > 0 {
		if err := s.Ledger.CreditSales(ctx, seller, split.ToSeller, now); err != nil {
			return 0, 0, err
		}
	}
	return split.ToSeller, split.ToPool, nil
}

// receiversFor prefers the snapshot already frozen on the pool; only a pool
// that has never accrued consults the adapter's current metadata.
func (s Service) receiversFor(ctx context.Context, sale SaleReference) ([]entities.RoyaltyReceiver, error) {
	pool, found, err := s.Ledger.GetPool(ctx, sale.AssetContract, sale.AssetID)
	if err != nil {
		return nil, err
	}
	if found && len(pool.Receivers) > 0 {
		return pool.Receivers, nil
	}
	return s.Assets.RoyaltyReceivers(ctx, sale.AssetContract, sale.AssetID)
}

// ClaimRoyalty pays the caller its outstanding share across every pool it
// appears in. Claim state is written before the vault release and reverted
// if the release fails.
func (s Service) ClaimRoyalty(ctx context.Context, caller string) (uint64, error) {
	logger := ResolveLogger(s.Logger)
	if strings.TrimSpace(caller) == "" {
		return 0, domainerrors.ErrInvalidAccount
	}

	if s.CallGuard != nil && !s.CallGuard.Enter() {
		return 0, domainerrors.ErrReentrantCall
	}
	defer func() {
		if s.CallGuard != nil {
			s.CallGuard.Exit()
		}
	}()

	pools, err := s.Ledger.ListPoolsForAccount(ctx, caller)
	if err != nil {
		return 0, err
	}

	var total uint64
	claims := make([]ports.PoolClaim, 0, len(pools))
	for _, pool := range pools {
		owed := pool.UnclaimedFor(caller)
		if owed == 0 {
			continue
		}
		claims = append(claims, ports.PoolClaim{
			AssetContract: pool.AssetContract,
			AssetID:       pool.AssetID,
			Amount:        owed,
		})
		total += owed
	}
	if total == 0 {
		return 0, domainerrors.ErrNothingToClaim
	}

	now := s.now()
	if err := s.Ledger.ApplyRoyaltyClaim(ctx, caller, claims, now); err != nil {
		return 0, err
	}
	if err := s.Vault.Release(ctx, caller, total); err != nil {
		if revertErr := s.Ledger.RevertRoyaltyClaim(ctx, caller, claims, now); revertErr != nil {
			logger.Error("royalty claim revert failed",
				"event", "ledger_royalty_revert_failed",
				"module", "finance-core/royalty-ledger",
				"layer", "application",
				"account", caller,
				"error", revertErr.Error(),
			)
		}
		return 0, err
	}

	s.appendFact(ctx, EventTypeRoyaltyClaimed, caller, now, map[string]any{
		"account": caller,
		"amount":  total,
		"pools":   len(claims),
	})
	logger.Info("royalty claimed",
		"event", "ledger_royalty_claimed",
		"module", "finance-core/royalty-ledger",
		"layer", "application",
		"account", caller,
		"amount", total,
	)
	return total, nil
}

// ClaimSales pays the caller its full deferred sales balance. The balance is
// debited before the vault release and restored if the release fails.
func (s Service) ClaimSales(ctx context.Context, caller string) (uint64, error) {
	logger := ResolveLogger(s.Logger)
	if strings.TrimSpace(caller) == "" {
		return 0, domainerrors.ErrInvalidAccount
	}

	if s.CallGuard != nil && !s.CallGuard.Enter() {
		return 0, domainerrors.ErrReentrantCall
	}
	defer func() {
		if s.CallGuard != nil {
			s.CallGuard.Exit()
		}
	}()

	now := s.now()
	amount, err := s.Ledger.DebitSales(ctx, caller, now)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, domainerrors.ErrNothingToClaim
	}

	if err := s.Vault.Release(ctx, caller, amount); err != nil {
		if restoreErr := s.Ledger.RestoreSales(ctx, caller, amount, now); restoreErr != nil {
			logger.Error("sales claim restore failed",
				"event", "ledger_sales_restore_failed",
				"module", "finance-core/royalty-ledger",
				"layer", "application",
				"account", caller,
				"error", restoreErr.Error(),
			)
		}
		return 0, err
	}

	s.appendFact(ctx, EventTypeSalesClaimed, caller, now, map[string]any{
		"account": caller,
		"amount":  amount,
	})
	logger.Info("sales balance claimed",
		"event", "ledger_sales_claimed",
		"module", "finance-core/royalty-ledger",
		"layer", "application",
		"account", caller,
		"amount", amount,
	)
	return amount, nil
}

// ResetTokenRoyalty drops a token's pool so its split can change. Only the
// asset adapter may call it, and only once every receiver has pulled its
// full entitlement; otherwise the outstanding balances come back itemized.
func (s Service) ResetTokenRoyalty(ctx context.Context, caller string, contract string, assetID string) error {
	logger := ResolveLogger(s.Logger)
	if err := s.Guard.RequireAssetAdapter(ctx, caller); err != nil {
		return err
	}

	if s.CallGuard != nil && !s.CallGuard.Enter() {
		return domainerrors.ErrReentrantCall
	}
	defer func() {
		if s.CallGuard != nil {
			s.CallGuard.Exit()
		}
	}()

	pool, found, err := s.Ledger.GetPool(ctx, contract, assetID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	outstanding := make([]domainerrors.ReceiverBalance, 0)
	for _, receiver := range pool.Receivers {
		if owed := pool.UnclaimedFor(receiver.Account); owed > 0 {
			outstanding = append(outstanding, domainerrors.ReceiverBalance{
				Account: receiver.Account,
				Amount:  owed,
			})
		}
	}
	if len(outstanding) > 0 {
		return &domainerrors.UnclaimedRoyaltyError{
			AssetContract: contract,
			AssetID:       assetID,
			Receivers:     outstanding,
		}
	}

	now := s.now()
	payload, err := json.Marshal(map[string]any{
		"asset_contract": contract,
		"asset_id":       assetID,
	})
	if err != nil {
		return err
	}
	event, err := s.newEvent(ctx, EventTypeTokenRoyaltyReset, contract+"/"+assetID, now, payload)
	if err != nil {
		return err
	}
	if err := s.Ledger.ResetPoolWithOutbox(ctx, contract, assetID, event); err != nil {
		return err
	}

	logger.Info("token royalty reset",
		"event", "ledger_token_royalty_reset",
		"module", "finance-core/royalty-ledger",
		"layer", "application",
		"asset_contract", contract,
		"asset_id", assetID,
	)
	return nil
}

// GetAccount reads an account with its derived royalty entitlement. Unknown
// owners answer as zero balances, not errors.
func (s Service) GetAccount(ctx context.Context, owner string) (AccountView, error) {
	if strings.TrimSpace(owner) == "" {
		return AccountView{}, domainerrors.ErrInvalidAccount
	}

	account, found, err := s.Ledger.GetAccount(ctx, owner)
	if err != nil {
		return AccountView{}, err
	}
	if !found {
		account = entities.Account{Owner: owner}
	}

	pools, err := s.Ledger.ListPoolsForAccount(ctx, owner)
	if err != nil {
		return AccountView{}, err
	}
	var unclaimed uint64
	for _, pool := range pools {
		unclaimed += pool.UnclaimedFor(owner)
	}
	return AccountView{Account: account, UnclaimedRoyalty: unclaimed}, nil
}

// UpdateFee changes the operator fee rate. Admin only; the rate must stay
// strictly below one hundred percent.
func (s Service) UpdateFee(ctx context.Context, caller string, feeBps uint64) error {
	logger := ResolveLogger(s.Logger)
	if err := s.Guard.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if feeBps >= entities.MaxBasisPoints {
		return domainerrors.ErrInvalidFeeRate
	}

	now := s.now()
	payload, err := json.Marshal(map[string]any{
		"fee_bps":    feeBps,
		"changed_by": caller,
	})
	if err != nil {
		return err
	}
	event, err := s.newEvent(ctx, EventTypeFeeUpdated, "fee", now, payload)
	if err != nil {
		return err
	}
	if err := s.Ledger.SetFeeBpsWithOutbox(ctx, feeBps, event); err != nil {
		return err
	}

	logger.Info("market fee updated",
		"event", "ledger_fee_updated",
		"module", "finance-core/royalty-ledger",
		"layer", "application",
		"fee_bps", feeBps,
		"changed_by", caller,
	)
	return nil
}

func (s Service) newEvent(
	ctx context.Context,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	payload json.RawMessage,
) (ports.LedgerEvent, error) {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.LedgerEvent{}, err
	}
	return ports.LedgerEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		OccurredAt:   occurredAt,
		Data:         payload,
	}, nil
}

// appendFact records a post-commit fact; the operation already succeeded, so
// a failed append is logged and swallowed.
func (s Service) appendFact(
	ctx context.Context,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) {
	if s.Outbox == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	event, err := s.newEvent(ctx, eventType, partitionKey, occurredAt, payload)
	if err != nil {
		return
	}
	if err := s.Outbox.AppendOutbox(ctx, event); err != nil {
		ResolveLogger(s.Logger).Error("ledger fact append failed",
			"event", "ledger_fact_append_failed",
			"module", "finance-core/royalty-ledger",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
	}
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

package tradingservice_test

import (
	"context"
	"errors"
	"testing"

	royaltyledger "treehauz/contexts/finance-core/royalty-ledger"
	ledgerapp "treehauz/contexts/finance-core/royalty-ledger/application"
	ledgerentities "treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	ledgererrors "treehauz/contexts/finance-core/royalty-ledger/domain/errors"
	accessguard "treehauz/contexts/identity-access/access-guard"
	guardentities "treehauz/contexts/identity-access/access-guard/domain/entities"
	guarderrors "treehauz/contexts/identity-access/access-guard/domain/errors"
	tradingservice "treehauz/contexts/marketplace-trading/trading-service"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
	httptransport "treehauz/contexts/marketplace-trading/trading-service/transport/http"
	"treehauz/internal/platform/assets"
	"treehauz/internal/platform/vault"
)

const (
	feeBps        = 250
	operator      = "market-operator"
	marketCustody = "market-custody"
	adminAccount  = "admin-1"
)

type ledgerPayouts struct {
	service ledgerapp.Service
}

func (p ledgerPayouts) Payout(ctx context.Context, payee string, amount uint64, listing ports.SaleListing) error {
	return p.service.Payout(ctx, payee, amount, ledgerapp.SaleReference{
		ListingID:     listing.ListingID,
		AssetContract: listing.AssetContract,
		AssetID:       listing.AssetID,
	})
}

type marketFixture struct {
	trading tradingservice.Module
	ledger  royaltyledger.Module
	guard   accessguard.Module
	sim     *assets.Simulator
	vault   *vault.Vault
}

func newMarketFixture(t *testing.T) marketFixture {
	t.Helper()

	sim := assets.NewSimulator([]assets.Contract{
		{Address: "native-single", Kind: "single", Native: true},
		{Address: "native-multi", Kind: "multi", Native: true},
		{
			Address:                "foreign-single",
			Kind:                   "single",
			Native:                 false,
			ForeignRoyaltyBps:      500,
			ForeignRoyaltyReceiver: "foreign-treasury",
		},
	}, nil)
	valueVault := vault.New(nil)
	guardModule := accessguard.NewInMemoryModule([]guardentities.RoleAssignment{
		{Account: adminAccount, Role: guardentities.RoleAdmin, GrantedBy: "test"},
	}, false, nil)
	ledgerModule := royaltyledger.NewInMemoryModule(
		sim, valueVault, guardModule.Service, feeBps, operator, nil,
	)
	tradingModule := tradingservice.NewInMemoryModule(
		sim, valueVault, guardModule.Service,
		ledgerPayouts{service: ledgerModule.Service},
		1, marketCustody, nil,
	)
	return marketFixture{
		trading: tradingModule,
		ledger:  ledgerModule,
		guard:   guardModule,
		sim:     sim,
		vault:   valueVault,
	}
}

func TestPrimarySaleSingleReceiverLifecycle(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	// Seller is the minter, one royalty receiver: a primary sale routes the
	// full post-fee remainder to the seller's pull balance.
	if err := fx.sim.Mint("native-single", "token-1", "seller-1", 1, []ledgerentities.RoyaltyReceiver{
		{Account: "artist-1", ShareBps: 1000},
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	created, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-single",
		AssetID:       "token-1",
		Quantity:      1,
		UnitPrice:     10_000,
	})
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if created.Listing.ListingID != 1 {
		t.Fatalf("expected first listing id 1, got %d", created.Listing.ListingID)
	}

	custody, err := fx.sim.BalanceOf(ctx, "native-single", "token-1", marketCustody)
	if err != nil {
		t.Fatalf("custody balance query failed: %v", err)
	}
	if custody != 1 {
		t.Fatalf("expected listed asset in market custody, got balance %d", custody)
	}

	sale, err := fx.trading.Handler.PurchaseHandler(ctx, "buyer-1", 1, httptransport.PurchaseRequest{
		Quantity:   1,
		AmountPaid: 10_000,
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if sale.Paid != 10_000 || sale.Quantity != 1 {
		t.Fatalf("unexpected sale result: %+v", sale)
	}

	if _, err := fx.trading.Handler.GetListingHandler(ctx, 1); !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("expected exhausted listing to be removed, got %v", err)
	}

	owned, err := fx.sim.BalanceOf(ctx, "native-single", "token-1", "buyer-1")
	if err != nil {
		t.Fatalf("buyer balance query failed: %v", err)
	}
	if owned != 1 {
		t.Fatalf("expected buyer to own the asset, got balance %d", owned)
	}

	// Fee 2.5% of 10000 goes to the operator immediately; the 9750 remainder
	// is deferred to the seller.
	if got := fx.vault.ReleasedTo(operator); got != 250 {
		t.Fatalf("expected operator fee 250, got %d", got)
	}
	account, err := fx.ledger.Handler.GetAccountHandler(ctx, "seller-1")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if account.UnclaimedSales != 9_750 {
		t.Fatalf("expected seller unclaimed sales 9750, got %d", account.UnclaimedSales)
	}
	if account.UnclaimedRoyalty != 0 {
		t.Fatalf("expected no royalty accrual on single-receiver primary sale, got %d", account.UnclaimedRoyalty)
	}

	claimed, err := fx.ledger.Handler.ClaimSalesHandler(ctx, "seller-1")
	if err != nil {
		t.Fatalf("claim sales failed: %v", err)
	}
	if claimed.Amount != 9_750 {
		t.Fatalf("expected claim of 9750, got %d", claimed.Amount)
	}
	if got := fx.vault.ReleasedTo("seller-1"); got != 9_750 {
		t.Fatalf("expected 9750 released to seller, got %d", got)
	}

	// Conservation: every deposited unit is either still custodied or was
	// released to a named account.
	if fx.vault.Custodied() != 0 {
		t.Fatalf("expected empty vault after all claims, custodied %d", fx.vault.Custodied())
	}
	if fx.vault.DepositedBy("buyer-1") != 10_000 {
		t.Fatalf("expected buyer deposits 10000, got %d", fx.vault.DepositedBy("buyer-1"))
	}
}

func TestSecondarySaleAccruesRoyaltyPool(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-multi", "token-9", "minter-1", 10, []ledgerentities.RoyaltyReceiver{
		{Account: "artist-1", ShareBps: 1500},
		{Account: "artist-2", ShareBps: 500},
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := fx.sim.Transfer(ctx, "native-multi", "minter-1", "seller-2", "token-9", 10); err != nil {
		t.Fatalf("hand-off transfer failed: %v", err)
	}

	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-2", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-9",
		Quantity:      10,
		UnitPrice:     1_000,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if _, err := fx.trading.Handler.PurchaseHandler(ctx, "buyer-2", 1, httptransport.PurchaseRequest{
		Quantity:   10,
		AmountPaid: 10_000,
	}); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// fee 250, remainder 9750, royalty cut 20% of remainder = 1950.
	seller, err := fx.ledger.Handler.GetAccountHandler(ctx, "seller-2")
	if err != nil {
		t.Fatalf("get seller account failed: %v", err)
	}
	if seller.UnclaimedSales != 7_800 {
		t.Fatalf("expected seller unclaimed sales 7800, got %d", seller.UnclaimedSales)
	}

	artist1, err := fx.ledger.Handler.GetAccountHandler(ctx, "artist-1")
	if err != nil {
		t.Fatalf("get artist-1 account failed: %v", err)
	}
	if artist1.UnclaimedRoyalty != 292 {
		t.Fatalf("expected artist-1 unclaimed royalty 292, got %d", artist1.UnclaimedRoyalty)
	}

	claimed, err := fx.ledger.Handler.ClaimRoyaltyHandler(ctx, "artist-1")
	if err != nil {
		t.Fatalf("claim royalty failed: %v", err)
	}
	if claimed.Amount != 292 {
		t.Fatalf("expected royalty claim 292, got %d", claimed.Amount)
	}
	if _, err := fx.ledger.Handler.ClaimRoyaltyHandler(ctx, "artist-1"); !errors.Is(err, ledgererrors.ErrNothingToClaim) {
		t.Fatalf("expected nothing-to-claim on second claim, got %v", err)
	}
}

func TestPrimarySaleMultiReceiverRoutesRemainderToPool(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-single", "token-3", "seller-3", 1, []ledgerentities.RoyaltyReceiver{
		{Account: "artist-1", ShareBps: 6000},
		{Account: "artist-2", ShareBps: 4000},
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-3", httptransport.CreateListingRequest{
		AssetContract: "native-single",
		AssetID:       "token-3",
		Quantity:      1,
		UnitPrice:     10_000,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if _, err := fx.trading.Handler.PurchaseHandler(ctx, "buyer-3", 1, httptransport.PurchaseRequest{
		Quantity:   1,
		AmountPaid: 10_000,
	}); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// Multi-receiver primary sale: the whole 9750 remainder is shared
	// royalty, nothing is credited to the seller directly.
	seller, err := fx.ledger.Handler.GetAccountHandler(ctx, "seller-3")
	if err != nil {
		t.Fatalf("get seller account failed: %v", err)
	}
	if seller.UnclaimedSales != 0 {
		t.Fatalf("expected zero direct seller credit, got %d", seller.UnclaimedSales)
	}

	first, err := fx.ledger.Handler.ClaimRoyaltyHandler(ctx, "artist-1")
	if err != nil {
		t.Fatalf("artist-1 claim failed: %v", err)
	}
	second, err := fx.ledger.Handler.ClaimRoyaltyHandler(ctx, "artist-2")
	if err != nil {
		t.Fatalf("artist-2 claim failed: %v", err)
	}
	if first.Amount != 5_850 || second.Amount != 3_900 {
		t.Fatalf("expected 60/40 split of 9750, got %d and %d", first.Amount, second.Amount)
	}
}

func TestForeignContractRoyaltyPaidImmediately(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("foreign-single", "token-f", "seller-f", 1, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-f", httptransport.CreateListingRequest{
		AssetContract: "foreign-single",
		AssetID:       "token-f",
		Quantity:      1,
		UnitPrice:     10_000,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if _, err := fx.trading.Handler.PurchaseHandler(ctx, "buyer-f", 1, httptransport.PurchaseRequest{
		Quantity:   1,
		AmountPaid: 10_000,
	}); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// Foreign assets never defer royalty: 5% of the post-fee remainder
	// (9750) is released straight to the reported receiver.
	if got := fx.vault.ReleasedTo("foreign-treasury"); got != 487 {
		t.Fatalf("expected immediate foreign royalty 487, got %d", got)
	}
	seller, err := fx.ledger.Handler.GetAccountHandler(ctx, "seller-f")
	if err != nil {
		t.Fatalf("get seller account failed: %v", err)
	}
	if seller.UnclaimedSales != 9_263 {
		t.Fatalf("expected seller credit 9263 after fee and foreign royalty, got %d", seller.UnclaimedSales)
	}
}

func TestDuplicateListingRejected(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-multi", "token-d", "seller-1", 10, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-d",
		Quantity:      4,
		UnitPrice:     100,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	_, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-d",
		Quantity:      2,
		UnitPrice:     100,
	})
	if !errors.Is(err, domainerrors.ErrListingConflict) {
		t.Fatalf("expected listing conflict, got %v", err)
	}
}

func TestPartialPurchaseLeavesRemainder(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-multi", "token-p", "seller-1", 5, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-p",
		Quantity:      5,
		UnitPrice:     100,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if _, err := fx.trading.Handler.PurchaseHandler(ctx, "buyer-1", 1, httptransport.PurchaseRequest{
		Quantity:   3,
		AmountPaid: 300,
	}); err != nil {
		t.Fatalf("partial purchase failed: %v", err)
	}

	remaining, err := fx.trading.Handler.GetListingHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get listing failed: %v", err)
	}
	if remaining.Listing.Quantity != 2 {
		t.Fatalf("expected 2 units remaining, got %d", remaining.Listing.Quantity)
	}
}

func TestOfferReplaceRefundsSupersededEscrow(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-multi", "token-o", "seller-1", 5, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-o",
		Quantity:      5,
		UnitPrice:     100,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if _, err := fx.trading.Handler.PlaceOfferHandler(ctx, "bidder-1", 1, httptransport.PlaceOfferRequest{
		Quantity:  2,
		UnitPrice: 90,
		Amount:    180,
	}); err != nil {
		t.Fatalf("first offer failed: %v", err)
	}
	replaced, err := fx.trading.Handler.PlaceOfferHandler(ctx, "bidder-1", 1, httptransport.PlaceOfferRequest{
		Quantity:  3,
		UnitPrice: 95,
		Amount:    285,
	})
	if err != nil {
		t.Fatalf("replacement offer failed: %v", err)
	}
	if !replaced.Replaced {
		t.Fatalf("expected replacement to report the superseded offer")
	}
	if got := fx.vault.ReleasedTo("bidder-1"); got != 180 {
		t.Fatalf("expected superseded escrow 180 refunded, got %d", got)
	}

	// Cancel after replace refunds only the live escrow.
	cancelled, err := fx.trading.Handler.CancelOfferHandler(ctx, "bidder-1", 1, "bidder-1")
	if err != nil {
		t.Fatalf("cancel offer failed: %v", err)
	}
	if cancelled.Refunded != 285 {
		t.Fatalf("expected latest escrow 285 refunded, got %d", cancelled.Refunded)
	}
	if _, err := fx.trading.Handler.CancelOfferHandler(ctx, "bidder-1", 1, "bidder-1"); !errors.Is(err, domainerrors.ErrOfferNotFound) {
		t.Fatalf("expected second cancel to find no offer, got %v", err)
	}
	if fx.vault.Custodied() != 0 {
		t.Fatalf("expected empty vault after refunds, custodied %d", fx.vault.Custodied())
	}
}

func TestAcceptOfferSettlesAtEscrowedAmount(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-multi", "token-a", "seller-1", 5, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-a",
		Quantity:      5,
		UnitPrice:     100,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if _, err := fx.trading.Handler.PlaceOfferHandler(ctx, "bidder-1", 1, httptransport.PlaceOfferRequest{
		Quantity:  3,
		UnitPrice: 80,
		Amount:    240,
	}); err != nil {
		t.Fatalf("place offer failed: %v", err)
	}

	if _, err := fx.trading.Handler.AcceptOfferHandler(ctx, "bidder-1", 1, "bidder-1"); !errors.Is(err, domainerrors.ErrNotListingOwner) {
		t.Fatalf("expected owner-only acceptance, got %v", err)
	}

	sale, err := fx.trading.Handler.AcceptOfferHandler(ctx, "seller-1", 1, "bidder-1")
	if err != nil {
		t.Fatalf("accept offer failed: %v", err)
	}
	if sale.Paid != 240 || sale.Quantity != 3 {
		t.Fatalf("unexpected settlement: %+v", sale)
	}

	owned, err := fx.sim.BalanceOf(ctx, "native-multi", "token-a", "bidder-1")
	if err != nil {
		t.Fatalf("bidder balance query failed: %v", err)
	}
	if owned != 3 {
		t.Fatalf("expected bidder to hold 3 units, got %d", owned)
	}
	remaining, err := fx.trading.Handler.GetListingHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get listing failed: %v", err)
	}
	if remaining.Listing.Quantity != 2 {
		t.Fatalf("expected listing quantity 2 after acceptance, got %d", remaining.Listing.Quantity)
	}
	offers, err := fx.trading.Handler.ListOffersHandler(ctx, 1)
	if err != nil {
		t.Fatalf("list offers failed: %v", err)
	}
	if len(offers.Items) != 0 {
		t.Fatalf("expected offer book empty after acceptance, got %d", len(offers.Items))
	}
}

func TestUpdateListingReescrowsAndZeroQuantityRemoves(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-multi", "token-u", "seller-1", 10, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-u",
		Quantity:      4,
		UnitPrice:     100,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if _, err := fx.trading.Handler.UpdateListingHandler(ctx, "buyer-1", 1, httptransport.UpdateListingRequest{
		Quantity:  8,
		UnitPrice: 100,
	}); !errors.Is(err, domainerrors.ErrNotListingOwner) {
		t.Fatalf("expected owner-only update, got %v", err)
	}

	updated, err := fx.trading.Handler.UpdateListingHandler(ctx, "seller-1", 1, httptransport.UpdateListingRequest{
		Quantity:  8,
		UnitPrice: 120,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Listing.Quantity != 8 || updated.Listing.UnitPrice != 120 {
		t.Fatalf("unexpected listing after update: %+v", updated.Listing)
	}
	custody, err := fx.sim.BalanceOf(ctx, "native-multi", "token-u", marketCustody)
	if err != nil {
		t.Fatalf("custody balance query failed: %v", err)
	}
	if custody != 8 {
		t.Fatalf("expected custody re-escrowed to 8 units, got %d", custody)
	}

	// An update past the owner's holdings fails and restores the old escrow.
	if _, err := fx.trading.Handler.UpdateListingHandler(ctx, "seller-1", 1, httptransport.UpdateListingRequest{
		Quantity:  11,
		UnitPrice: 120,
	}); !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("expected balance rejection, got %v", err)
	}
	custody, err = fx.sim.BalanceOf(ctx, "native-multi", "token-u", marketCustody)
	if err != nil {
		t.Fatalf("custody balance query failed: %v", err)
	}
	if custody != 8 {
		t.Fatalf("expected custody unchanged after failed update, got %d", custody)
	}

	removed, err := fx.trading.Handler.UpdateListingHandler(ctx, "seller-1", 1, httptransport.UpdateListingRequest{
		Quantity:  0,
		UnitPrice: 120,
	})
	if err != nil {
		t.Fatalf("zero-quantity update failed: %v", err)
	}
	if !removed.Removed {
		t.Fatalf("expected zero-quantity update to remove the listing")
	}
	owned, err := fx.sim.BalanceOf(ctx, "native-multi", "token-u", "seller-1")
	if err != nil {
		t.Fatalf("owner balance query failed: %v", err)
	}
	if owned != 10 {
		t.Fatalf("expected all units back with the owner, got %d", owned)
	}
}

func TestRemoveListingReturnsEscrowedAsset(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-single", "token-r", "seller-1", 1, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-single",
		AssetID:       "token-r",
		Quantity:      1,
		UnitPrice:     100,
	}); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if err := fx.trading.Handler.RemoveListingHandler(ctx, "buyer-1", 1); !errors.Is(err, domainerrors.ErrNotListingOwner) {
		t.Fatalf("expected owner-only removal, got %v", err)
	}
	if err := fx.trading.Handler.RemoveListingHandler(ctx, "seller-1", 1); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	owned, err := fx.sim.BalanceOf(ctx, "native-single", "token-r", "seller-1")
	if err != nil {
		t.Fatalf("owner balance query failed: %v", err)
	}
	if owned != 1 {
		t.Fatalf("expected asset back with the owner, got %d", owned)
	}
	if _, err := fx.trading.Handler.GetListingHandler(ctx, 1); !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("expected listing gone, got %v", err)
	}
}

func TestMarketPauseBlocksTrading(t *testing.T) {
	ctx := context.Background()
	fx := newMarketFixture(t)

	if err := fx.sim.Mint("native-multi", "token-x", "seller-1", 5, nil); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := fx.guard.Service.SetMarketPaused(ctx, adminAccount, true); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	_, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-x",
		Quantity:      5,
		UnitPrice:     100,
	})
	if !errors.Is(err, guarderrors.ErrMarketplacePaused) {
		t.Fatalf("expected paused marketplace rejection, got %v", err)
	}

	if err := fx.guard.Service.SetMarketPaused(ctx, adminAccount, false); err != nil {
		t.Fatalf("unpause failed: %v", err)
	}
	if _, err := fx.trading.Handler.CreateListingHandler(ctx, "seller-1", httptransport.CreateListingRequest{
		AssetContract: "native-multi",
		AssetID:       "token-x",
		Quantity:      5,
		UnitPrice:     100,
	}); err != nil {
		t.Fatalf("create listing after unpause failed: %v", err)
	}

	if err := fx.guard.Service.SetSellerPaused(ctx, adminAccount, "seller-1", true); err != nil {
		t.Fatalf("seller pause failed: %v", err)
	}
	_, err = fx.trading.Handler.PurchaseHandler(ctx, "buyer-1", 1, httptransport.PurchaseRequest{
		Quantity:   1,
		AmountPaid: 100,
	})
	if !errors.Is(err, guarderrors.ErrSellerPaused) {
		t.Fatalf("expected paused seller rejection, got %v", err)
	}
}

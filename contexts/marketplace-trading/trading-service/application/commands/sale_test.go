package commands_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"treehauz/contexts/marketplace-trading/trading-service/adapters/memory"
	"treehauz/contexts/marketplace-trading/trading-service/application/commands"
	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
	"treehauz/internal/shared/guard"
)

var errTransferRefused = errors.New("transfer refused")

// flakyAssets counts transfers and fails the Nth one.
type flakyAssets struct {
	kind      entities.AssetKind
	calls     int
	failOn    int
	transfers []string
}

func (f *flakyAssets) KindOf(context.Context, string) (entities.AssetKind, error) {
	return f.kind, nil
}

func (f *flakyAssets) BalanceOf(context.Context, string, string, string) (uint64, error) {
	return 1 << 20, nil
}

func (f *flakyAssets) Transfer(_ context.Context, _ string, from string, to string, _ string, _ uint64) error {
	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return errTransferRefused
	}
	f.transfers = append(f.transfers, from+"->"+to)
	return nil
}

type recordingVault struct {
	deposits map[string]uint64
	releases map[string]uint64
}

func newRecordingVault() *recordingVault {
	return &recordingVault{
		deposits: make(map[string]uint64),
		releases: make(map[string]uint64),
	}
}

func (v *recordingVault) Deposit(_ context.Context, from string, amount uint64) error {
	v.deposits[from] += amount
	return nil
}

func (v *recordingVault) Release(_ context.Context, to string, amount uint64) error {
	v.releases[to] += amount
	return nil
}

type alwaysActiveGuard struct{}

func (alwaysActiveGuard) EnsureActive(context.Context, string) error { return nil }

type payoutRecorder struct {
	err   error
	calls []uint64
}

func (p *payoutRecorder) Payout(_ context.Context, _ string, amount uint64, _ ports.SaleListing) error {
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, amount)
	return nil
}

func seedListing(t *testing.T, store *memory.Store, quantity uint64) entities.Listing {
	t.Helper()
	listing, err := store.CreateListing(context.Background(), entities.Listing{
		AssetKind:     entities.AssetKindMulti,
		AssetContract: "contract-1",
		AssetID:       "token-1",
		Owner:         "seller-1",
		Quantity:      quantity,
		UnitPrice:     100,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed listing failed: %v", err)
	}
	return listing
}

func TestSaleExecutorRestoresListingOnTransferFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	listing := seedListing(t, store, 1)
	assets := &flakyAssets{kind: entities.AssetKindMulti, failOn: 1}

	executor := commands.SaleExecutor{
		Listings:      store,
		Assets:        assets,
		Payouts:       &payoutRecorder{},
		Outbox:        store,
		Clock:         store,
		IDGen:         store,
		MarketCustody: "custody",
	}

	_, err := executor.Execute(ctx, listing, "buyer-1", 1, 100)
	if !errors.Is(err, errTransferRefused) {
		t.Fatalf("expected transfer failure to surface, got %v", err)
	}

	restored, err := store.GetListing(ctx, listing.ListingID)
	if err != nil {
		t.Fatalf("expected listing restored after failed delivery: %v", err)
	}
	if restored.Quantity != 1 {
		t.Fatalf("expected original quantity restored, got %d", restored.Quantity)
	}
}

func TestSaleExecutorClawsBackAssetOnPayoutFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	listing := seedListing(t, store, 3)
	assets := &flakyAssets{kind: entities.AssetKindMulti}
	payouts := &payoutRecorder{err: errors.New("ledger unavailable")}

	executor := commands.SaleExecutor{
		Listings:      store,
		Assets:        assets,
		Payouts:       payouts,
		Outbox:        store,
		Clock:         store,
		IDGen:         store,
		MarketCustody: "custody",
	}

	_, err := executor.Execute(ctx, listing, "buyer-1", 2, 200)
	if err == nil {
		t.Fatalf("expected payout failure to abort the sale")
	}

	// Delivery then clawback: custody->buyer followed by buyer->custody.
	if len(assets.transfers) != 2 ||
		assets.transfers[0] != "custody->buyer-1" ||
		assets.transfers[1] != "buyer-1->custody" {
		t.Fatalf("expected delivery and clawback transfers, got %v", assets.transfers)
	}

	restored, err := store.GetListing(ctx, listing.ListingID)
	if err != nil {
		t.Fatalf("expected listing restored: %v", err)
	}
	if restored.Quantity != 3 {
		t.Fatalf("expected quantity restored to 3, got %d", restored.Quantity)
	}
}

func TestPurchaseRefundsBuyerWhenSaleFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	listing := seedListing(t, store, 1)
	assets := &flakyAssets{kind: entities.AssetKindMulti, failOn: 1}
	valueVault := newRecordingVault()

	purchase := commands.PurchaseUseCase{
		Listings:        store,
		Vault:           valueVault,
		Guard:           alwaysActiveGuard{},
		CallGuard:       &guard.CallGuard{},
		MinListingPrice: 1,
		Sale: commands.SaleExecutor{
			Listings:      store,
			Assets:        assets,
			Payouts:       &payoutRecorder{},
			Outbox:        store,
			Clock:         store,
			IDGen:         store,
			MarketCustody: "custody",
		},
	}

	_, err := purchase.Execute(ctx, commands.PurchaseCommand{
		ListingID:  listing.ListingID,
		Buyer:      "buyer-1",
		Quantity:   1,
		AmountPaid: 100,
	})
	if !errors.Is(err, errTransferRefused) {
		t.Fatalf("expected delivery failure to surface, got %v", err)
	}
	if valueVault.deposits["buyer-1"] != 100 || valueVault.releases["buyer-1"] != 100 {
		t.Fatalf("expected full refund of accepted funds, deposits=%d releases=%d",
			valueVault.deposits["buyer-1"], valueVault.releases["buyer-1"])
	}
}

func TestPurchaseRejectsUnderpayment(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	listing := seedListing(t, store, 4)

	purchase := commands.PurchaseUseCase{
		Listings:        store,
		Vault:           newRecordingVault(),
		Guard:           alwaysActiveGuard{},
		CallGuard:       &guard.CallGuard{},
		MinListingPrice: 1,
		Sale: commands.SaleExecutor{
			Listings:      store,
			Assets:        &flakyAssets{kind: entities.AssetKindMulti},
			Payouts:       &payoutRecorder{},
			Outbox:        store,
			Clock:         store,
			IDGen:         store,
			MarketCustody: "custody",
		},
	}

	_, err := purchase.Execute(ctx, commands.PurchaseCommand{
		ListingID:  listing.ListingID,
		Buyer:      "buyer-1",
		Quantity:   3,
		AmountPaid: 299,
	})
	if !errors.Is(err, domainerrors.ErrInvalidPurchasePrice) {
		t.Fatalf("expected underpayment rejection, got %v", err)
	}
}

func TestPurchaseRejectsOverflowingTotal(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	quantity := uint64(math.MaxUint64/100 + 1)
	listing, err := store.CreateListing(ctx, entities.Listing{
		AssetKind:     entities.AssetKindMulti,
		AssetContract: "contract-1",
		AssetID:       "token-big",
		Owner:         "seller-1",
		Quantity:      quantity,
		UnitPrice:     100,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed listing failed: %v", err)
	}

	purchase := commands.PurchaseUseCase{
		Listings:        store,
		Vault:           newRecordingVault(),
		Guard:           alwaysActiveGuard{},
		CallGuard:       &guard.CallGuard{},
		MinListingPrice: 1,
		Sale: commands.SaleExecutor{
			Listings:      store,
			Assets:        &flakyAssets{kind: entities.AssetKindMulti},
			Payouts:       &payoutRecorder{},
			Outbox:        store,
			Clock:         store,
			IDGen:         store,
			MarketCustody: "custody",
		},
	}

	// quantity*unit price wraps uint64; the wrapped total must not pass the
	// price check.
	_, err = purchase.Execute(ctx, commands.PurchaseCommand{
		ListingID:  listing.ListingID,
		Buyer:      "buyer-1",
		Quantity:   quantity,
		AmountPaid: math.MaxUint64,
	})
	if !errors.Is(err, domainerrors.ErrInvalidPurchasePrice) {
		t.Fatalf("expected overflow rejection, got %v", err)
	}
}

func TestPurchaseRejectsReentrantCall(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	listing := seedListing(t, store, 1)

	callGuard := &guard.CallGuard{}
	if !callGuard.Enter() {
		t.Fatalf("guard should admit the first caller")
	}
	defer callGuard.Exit()

	purchase := commands.PurchaseUseCase{
		Listings:        store,
		Vault:           newRecordingVault(),
		Guard:           alwaysActiveGuard{},
		CallGuard:       callGuard,
		MinListingPrice: 1,
		Sale: commands.SaleExecutor{
			Listings:      store,
			Assets:        &flakyAssets{kind: entities.AssetKindMulti},
			Payouts:       &payoutRecorder{},
			Outbox:        store,
			Clock:         store,
			IDGen:         store,
			MarketCustody: "custody",
		},
	}

	_, err := purchase.Execute(ctx, commands.PurchaseCommand{
		ListingID:  listing.ListingID,
		Buyer:      "buyer-1",
		Quantity:   1,
		AmountPaid: 100,
	})
	if !errors.Is(err, domainerrors.ErrReentrantCall) {
		t.Fatalf("expected re-entrant call rejection, got %v", err)
	}
}

type failingOutbox struct{}

func (failingOutbox) AppendOutbox(context.Context, ports.MarketEvent) error {
	return errors.New("outbox unavailable")
}

func TestPurchaseSurvivesOutboxAppendFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	listing := seedListing(t, store, 1)
	assets := &flakyAssets{kind: entities.AssetKindMulti}
	payouts := &payoutRecorder{}
	valueVault := newRecordingVault()

	purchase := commands.PurchaseUseCase{
		Listings:        store,
		Vault:           valueVault,
		Guard:           alwaysActiveGuard{},
		CallGuard:       &guard.CallGuard{},
		MinListingPrice: 1,
		Sale: commands.SaleExecutor{
			Listings:      store,
			Assets:        assets,
			Payouts:       payouts,
			Outbox:        failingOutbox{},
			Clock:         store,
			IDGen:         store,
			MarketCustody: "custody",
		},
	}

	result, err := purchase.Execute(ctx, commands.PurchaseCommand{
		ListingID:  listing.ListingID,
		Buyer:      "buyer-1",
		Quantity:   1,
		AmountPaid: 100,
	})
	if err != nil {
		t.Fatalf("settled sale must not fail on a fact append error, got %v", err)
	}
	if result.Paid != 100 || result.Quantity != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// The asset was delivered and the payout routed exactly once; the buyer
	// keeps the asset and gets no refund.
	if len(assets.transfers) != 1 || assets.transfers[0] != "custody->buyer-1" {
		t.Fatalf("expected a single delivery transfer, got %v", assets.transfers)
	}
	if len(payouts.calls) != 1 || payouts.calls[0] != 100 {
		t.Fatalf("expected one payout of 100, got %v", payouts.calls)
	}
	if valueVault.releases["buyer-1"] != 0 {
		t.Fatalf("expected no refund, buyer was released %d", valueVault.releases["buyer-1"])
	}
	if _, err := store.GetListing(ctx, listing.ListingID); !errors.Is(err, domainerrors.ErrListingNotFound) {
		t.Fatalf("expected exhausted listing deleted, got %v", err)
	}
}

func TestSaleExecutorAppendsSaleFact(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	listing := seedListing(t, store, 5)

	executor := commands.SaleExecutor{
		Listings:      store,
		Assets:        &flakyAssets{kind: entities.AssetKindMulti},
		Payouts:       &payoutRecorder{},
		Outbox:        store,
		Clock:         store,
		IDGen:         store,
		MarketCustody: "custody",
	}

	remaining, err := executor.Execute(ctx, listing, "buyer-1", 2, 200)
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if remaining.Quantity != 3 {
		t.Fatalf("expected 3 units remaining, got %d", remaining.Quantity)
	}

	events := store.OutboxEvents()
	var found bool
	for _, event := range events {
		if event.EventType == "sale.executed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a sale fact in the outbox, got %d events", len(events))
	}
}

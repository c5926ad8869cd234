package services

import (
	"errors"
	"testing"

	"treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	domainerrors "treehauz/contexts/finance-core/royalty-ledger/domain/errors"
)

func TestMarketCutFloors(t *testing.T) {
	cases := []struct {
		name   string
		amount uint64
		feeBps uint64
		want   uint64
	}{
		{"whole percent", 10_000, 250, 250},
		{"floors fraction", 999, 250, 24},
		{"zero fee", 10_000, 0, 0},
		{"zero amount", 0, 250, 0},
		{"full rate", 10_000, 10_000, 10_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MarketCut(tc.amount, tc.feeBps); got != tc.want {
				t.Fatalf("MarketCut(%d, %d) = %d, want %d", tc.amount, tc.feeBps, got, tc.want)
			}
		})
	}
}

func TestRoyaltyFeeCapsAtRemainder(t *testing.T) {
	receivers := []entities.RoyaltyReceiver{
		{Account: "a", ShareBps: 6_000},
		{Account: "b", ShareBps: 6_000},
	}
	// 120% nominal share must not exceed the remainder itself.
	if got := RoyaltyFee(1_000, receivers); got != 1_000 {
		t.Fatalf("expected fee capped at remainder 1000, got %d", got)
	}
	if got := RoyaltyFee(1_000, nil); got != 0 {
		t.Fatalf("expected zero fee without receivers, got %d", got)
	}
}

func TestRouteRemainder(t *testing.T) {
	cases := []struct {
		name          string
		primary       bool
		receiverCount int
		remainder     uint64
		royaltyFee    uint64
		want          Split
	}{
		{"primary single receiver", true, 1, 9_750, 975, Split{ToSeller: 9_750}},
		{"primary no receivers", true, 0, 9_750, 0, Split{ToSeller: 9_750}},
		{"primary multiple receivers", true, 3, 9_750, 975, Split{ToPool: 9_750}},
		{"secondary", false, 2, 9_750, 1_950, Split{ToSeller: 7_800, ToPool: 1_950}},
		{"secondary oversize fee clamped", false, 1, 500, 800, Split{ToPool: 500}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RouteRemainder(tc.primary, tc.receiverCount, tc.remainder, tc.royaltyFee)
			if got != tc.want {
				t.Fatalf("RouteRemainder = %+v, want %+v", got, tc.want)
			}
			if got.ToSeller+got.ToPool != tc.remainder {
				t.Fatalf("split loses value: %d + %d != %d", got.ToSeller, got.ToPool, tc.remainder)
			}
		})
	}
}

func TestValidateReceivers(t *testing.T) {
	valid := []entities.RoyaltyReceiver{
		{Account: "a", ShareBps: 6_000},
		{Account: "b", ShareBps: 4_000},
	}
	if err := ValidateReceivers(valid); err != nil {
		t.Fatalf("valid split rejected: %v", err)
	}
	if err := ValidateReceivers(nil); err != nil {
		t.Fatalf("empty receiver list rejected: %v", err)
	}

	cases := []struct {
		name      string
		receivers []entities.RoyaltyReceiver
	}{
		{"blank account", []entities.RoyaltyReceiver{{Account: "  ", ShareBps: 100}}},
		{"zero share", []entities.RoyaltyReceiver{{Account: "a", ShareBps: 0}}},
		{"total above whole", []entities.RoyaltyReceiver{
			{Account: "a", ShareBps: 7_000},
			{Account: "b", ShareBps: 7_000},
		}},
		// A duplicate's second share would strand in the pool forever.
		{"duplicate account", []entities.RoyaltyReceiver{
			{Account: "a", ShareBps: 3_000},
			{Account: "a", ShareBps: 2_000},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateReceivers(tc.receivers); !errors.Is(err, domainerrors.ErrInvalidReceiverSplit) {
				t.Fatalf("expected invalid split, got %v", err)
			}
		})
	}
}

func TestPoolUnclaimedFor(t *testing.T) {
	pool := entities.RoyaltyPool{
		Accrued: 1_950,
		Receivers: []entities.RoyaltyReceiver{
			{Account: "artist-1", ShareBps: 1_500},
			{Account: "artist-2", ShareBps: 500},
		},
		ClaimedBy: map[string]uint64{"artist-1": 100},
	}
	if got := pool.UnclaimedFor("artist-1"); got != 192 {
		t.Fatalf("expected 292 entitled minus 100 claimed = 192, got %d", got)
	}
	if got := pool.UnclaimedFor("artist-2"); got != 97 {
		t.Fatalf("expected 97, got %d", got)
	}
	if got := pool.UnclaimedFor("stranger"); got != 0 {
		t.Fatalf("expected 0 for non-receiver, got %d", got)
	}
}

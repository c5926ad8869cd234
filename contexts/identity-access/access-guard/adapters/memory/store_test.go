package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"treehauz/contexts/identity-access/access-guard/domain/entities"
	"treehauz/contexts/identity-access/access-guard/ports"
)

func guardEvent(id, eventType, key string) ports.GuardEvent {
	return ports.GuardEvent{
		EventID:      id,
		EventType:    eventType,
		PartitionKey: key,
		OccurredAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Data:         json.RawMessage(`{}`),
	}
}

func TestOutboxRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, false, nil)

	if err := store.SetMarketPausedWithOutbox(ctx, true, guardEvent("guard-1", "pause.changed", "market")); err != nil {
		t.Fatalf("set market pause failed: %v", err)
	}
	pause := entities.SellerPause{Seller: "seller-1", Paused: true, UpdatedAt: time.Now().UTC()}
	if err := store.SetSellerPausedWithOutbox(ctx, pause, guardEvent("guard-2", "seller_pause.changed", "seller-1")); err != nil {
		t.Fatalf("set seller pause failed: %v", err)
	}

	paused, err := store.MarketPaused(ctx)
	if err != nil || !paused {
		t.Fatalf("expected paused market, got %v %v", paused, err)
	}
	sellerPaused, err := store.SellerPaused(ctx, "seller-1")
	if err != nil || !sellerPaused {
		t.Fatalf("expected paused seller, got %v %v", sellerPaused, err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "guard-1" || pending[1].OutboxID != "guard-2" {
		t.Fatalf("unexpected pending rows: %+v", pending)
	}

	var envelope ports.EventEnvelope
	if err := json.Unmarshal(pending[0].Payload, &envelope); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if envelope.SourceService != "access-guard" || envelope.EventType != "pause.changed" || envelope.PartitionKey != "market" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}

	if err := store.MarkOutboxSent(ctx, "guard-1", time.Now()); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending after ack failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "guard-2" {
		t.Fatalf("expected one pending row, got %+v", pending)
	}

	if err := store.MarkOutboxSent(ctx, "guard-404", time.Now()); err == nil {
		t.Fatalf("expected error on unknown outbox id")
	}
}

func TestListPendingOutboxLimit(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, false, nil)

	for _, id := range []string{"guard-1", "guard-2", "guard-3"} {
		if err := store.SetMarketPausedWithOutbox(ctx, true, guardEvent(id, "pause.changed", "market")); err != nil {
			t.Fatalf("set market pause failed: %v", err)
		}
	}

	pending, err := store.ListPendingOutbox(ctx, 2)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "guard-1" || pending[1].OutboxID != "guard-2" {
		t.Fatalf("unexpected limited rows: %+v", pending)
	}
}

package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "treehauz/contexts/marketplace-trading/trading-service/application"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
)

const (
	listingCreatedEventType = "listing.created"
	listingUpdatedEventType = "listing.updated"
	listingRemovedEventType = "listing.removed"
	offerCreatedEventType   = "offer.created"
	offerCancelledEventType = "offer.cancelled"
	saleExecutedEventType   = "sale.executed"
)

// appendFact records a committed marketplace fact on the module outbox.
// Facts are appended only after state and transfers have settled; the
// operation already succeeded, so a failed append is logged and swallowed.
func appendFact(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	logger *slog.Logger,
	occurredAt time.Time,
	eventType string,
	partitionKey string,
	payload map[string]any,
) {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		logAppendFailure(logger, eventType, err)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logAppendFailure(logger, eventType, err)
		return
	}
	if err := outbox.AppendOutbox(ctx, ports.MarketEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		OccurredAt:   occurredAt.UTC(),
		Data:         data,
	}); err != nil {
		logAppendFailure(logger, eventType, err)
	}
}

func logAppendFailure(logger *slog.Logger, eventType string, err error) {
	application.ResolveLogger(logger).Error("market fact append failed",
		"event", "market_fact_append_failed",
		"module", "marketplace-trading/trading-service",
		"layer", "application",
		"event_type", eventType,
		"error", err.Error(),
	)
}

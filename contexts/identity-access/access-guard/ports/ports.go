package ports

import (
	"context"
	"encoding/json"
	"time"

	"treehauz/contexts/identity-access/access-guard/domain/entities"
	sharedevents "treehauz/internal/shared/events"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// GuardEvent is the outbound fact persisted to the module outbox.
type GuardEvent struct {
	EventID      string
	EventType    string
	PartitionKey string
	OccurredAt   time.Time
	Data         json.RawMessage
}

// Repository owns role assignments and pause flags.
type Repository interface {
	HasRole(ctx context.Context, account string, role entities.Role) (bool, error)
	ListRoles(ctx context.Context, account string) ([]entities.RoleAssignment, error)
	GrantRole(ctx context.Context, assignment entities.RoleAssignment) error
	RevokeRole(ctx context.Context, account string, role entities.Role) error

	MarketPaused(ctx context.Context) (bool, error)
	// SetMarketPausedWithOutbox flips the global flag and appends the
	// pause.changed fact in one critical section.
	SetMarketPausedWithOutbox(ctx context.Context, paused bool, event GuardEvent) error
	SellerPaused(ctx context.Context, seller string) (bool, error)
	SetSellerPausedWithOutbox(ctx context.Context, pause entities.SellerPause, event GuardEvent) error
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-service envelope.
type EventEnvelope = sharedevents.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

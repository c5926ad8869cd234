package ports

import (
	"context"
	"encoding/json"
	"time"

	"treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	sharedevents "treehauz/internal/shared/events"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// LedgerEvent is an observability fact produced by a ledger mutation.
type LedgerEvent struct {
	EventID      string
	EventType    string
	PartitionKey string
	OccurredAt   time.Time
	Data         json.RawMessage
}

// PoolClaim is one pool's slice of a royalty claim, kept so a failed vault
// release can be reverted pool by pool.
type PoolClaim struct {
	AssetContract string
	AssetID       string
	Amount        uint64
}

// LedgerRepository owns accounts, royalty pools and the fee configuration.
// The *WithOutbox methods commit the mutation and its fact atomically;
// everything the ledger credits stays here until the owner pulls it.
type LedgerRepository interface {
	GetAccount(ctx context.Context, owner string) (entities.Account, bool, error)
	CreditSales(ctx context.Context, owner string, amount uint64, at time.Time) error
	// DebitSales removes and returns the account's full deferred sales
	// balance.
	DebitSales(ctx context.Context, owner string, at time.Time) (uint64, error)
	RestoreSales(ctx context.Context, owner string, amount uint64, at time.Time) error

	GetPool(ctx context.Context, contract string, assetID string) (entities.RoyaltyPool, bool, error)
	ListPoolsForAccount(ctx context.Context, account string) ([]entities.RoyaltyPool, error)
	// AccrueRoyaltyWithOutbox adds amount to the token's pool, snapshotting
	// the receiver split on first accrual.
	AccrueRoyaltyWithOutbox(
		ctx context.Context,
		contract string,
		assetID string,
		amount uint64,
		receivers []entities.RoyaltyReceiver,
		at time.Time,
		event LedgerEvent,
	) error
	// ApplyRoyaltyClaim marks the claims as taken by the account and bumps
	// its lifetime royalty counter.
	ApplyRoyaltyClaim(ctx context.Context, account string, claims []PoolClaim, at time.Time) error
	RevertRoyaltyClaim(ctx context.Context, account string, claims []PoolClaim, at time.Time) error
	// ResetPoolWithOutbox drops an exhausted pool so the token's split can
	// be renegotiated.
	ResetPoolWithOutbox(ctx context.Context, contract string, assetID string, event LedgerEvent) error

	GetFeeBps(ctx context.Context) (uint64, error)
	SetFeeBpsWithOutbox(ctx context.Context, feeBps uint64, event LedgerEvent) error
}

// OutboxWriter appends a fact without an accompanying state mutation.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event LedgerEvent) error
}

// AssetAdapter is the asset-side metadata the distributor needs: whether a
// contract is marketplace-native, who minted a token, and the royalty terms.
// RoyaltyInfo serves foreign contracts that publish a single receiver and
// amount per sale.
type AssetAdapter interface {
	IsNative(ctx context.Context, contract string) (bool, error)
	MinterOf(ctx context.Context, contract string, assetID string) (string, error)
	RoyaltyReceivers(ctx context.Context, contract string, assetID string) ([]entities.RoyaltyReceiver, error)
	RoyaltyInfo(
		ctx context.Context,
		contract string,
		assetID string,
		saleAmount uint64,
	) (receiver string, amount uint64, ok bool, err error)
}

// ValueVault releases custodied funds to their final owner.
type ValueVault interface {
	Release(ctx context.Context, to string, amount uint64) error
}

// ActivityGuard gates the privileged ledger operations.
type ActivityGuard interface {
	RequireAdmin(ctx context.Context, account string) error
	RequireAssetAdapter(ctx context.Context, account string) error
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-service envelope.
type EventEnvelope = sharedevents.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

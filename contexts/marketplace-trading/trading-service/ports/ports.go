package ports

import (
	"context"
	"encoding/json"
	"time"

	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	sharedevents "treehauz/internal/shared/events"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts event identifier generation. Listing ids are NOT
// produced here; the listing repository assigns them monotonically from 1.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// AssetAdapter is the external asset-ownership contract consumed by the
// marketplace. Implementations report asset kind and balances and perform the
// actual transfers into and out of marketplace custody.
type AssetAdapter interface {
	KindOf(ctx context.Context, contract string) (entities.AssetKind, error)
	// BalanceOf reports the owner's transferable quantity; single-unit
	// contracts answer 1 when the owner holds the asset, 0 otherwise.
	BalanceOf(ctx context.Context, contract string, assetID string, owner string) (uint64, error)
	Transfer(ctx context.Context, contract string, from string, to string, assetID string, quantity uint64) error
}

// ValueVault custodies pending funds. Release is restricted to the
// marketplace core on the implementation side.
type ValueVault interface {
	Deposit(ctx context.Context, from string, amount uint64) error
	Release(ctx context.Context, to string, amount uint64) error
}

// ActivityGuard rejects operations while the marketplace or a seller is
// paused.
type ActivityGuard interface {
	EnsureActive(ctx context.Context, seller string) error
}

// SaleListing is the listing snapshot handed to the royalty distributor.
type SaleListing struct {
	ListingID     uint64
	AssetKind     entities.AssetKind
	AssetContract string
	AssetID       string
	Seller        string
}

// PayoutService splits a completed sale between the operator fee, royalty
// pool, and the seller's pull-payment balance.
type PayoutService interface {
	Payout(ctx context.Context, payee string, amount uint64, listing SaleListing) error
}

// ListingFilter defines read-side filtering/pagination for the listing book.
type ListingFilter struct {
	Owner  string
	Cursor string
	Limit  int
}

// ListingRepository owns listing rows and the (contract, asset) reverse
// index. An index entry exists iff the listing is active; CreateListing
// assigns the next monotonic listing id starting at 1.
type ListingRepository interface {
	CreateListing(ctx context.Context, listing entities.Listing) (entities.Listing, error)
	GetListing(ctx context.Context, listingID uint64) (entities.Listing, error)
	GetListingByAsset(ctx context.Context, contract string, assetID string) (entities.Listing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]entities.Listing, string, error)
	// UpdateListing replaces quantity/price of an existing listing.
	UpdateListing(ctx context.Context, listing entities.Listing) error
	// DeleteListing removes the listing and its reverse index entry.
	DeleteListing(ctx context.Context, listingID uint64) error
	// RestoreListing reinstates a listing snapshot after a failed external
	// transfer. It must rebuild the reverse index entry.
	RestoreListing(ctx context.Context, listing entities.Listing) error
}

// OfferRepository owns the per-listing, per-offeror offer book.
type OfferRepository interface {
	GetOffer(ctx context.Context, listingID uint64, offeror string) (entities.Offer, bool, error)
	// PutOffer stores or overwrites the offeror's offer and returns the
	// replaced offer, if any, so its escrow can be refunded.
	PutOffer(ctx context.Context, offer entities.Offer) (entities.Offer, bool, error)
	// DeleteOffer removes and returns the offer. Deletion precedes any fund
	// movement for the offer.
	DeleteOffer(ctx context.Context, listingID uint64, offeror string) (entities.Offer, error)
	RestoreOffer(ctx context.Context, offer entities.Offer) error
	ListOffersByListing(ctx context.Context, listingID uint64) ([]entities.Offer, error)
}

// MarketEvent is an observability fact appended after an operation commits.
type MarketEvent struct {
	EventID      string
	EventType    string
	PartitionKey string
	OccurredAt   time.Time
	Data         json.RawMessage
}

// OutboxWriter appends committed facts for worker relay.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event MarketEvent) error
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

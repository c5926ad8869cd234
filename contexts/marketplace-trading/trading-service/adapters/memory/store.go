package memory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	application "treehauz/contexts/marketplace-trading/trading-service/application"
	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"
)

// Store is an in-memory adapter implementing the trading-service ports for
// local runtime and tests. One mutex serializes all mutations; it is the
// module's declared serialization boundary and is not intended as production
// persistence.
type Store struct {
	mu            sync.RWMutex
	listings      map[uint64]entities.Listing
	assetIndex    map[string]uint64
	offers        map[string]entities.Offer
	nextListingID uint64
	outbox        map[string]ports.OutboxMessage
	outboxOrder   []string
	outboxSent    map[string]time.Time
	sequence      uint64
	logger        *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		listings:      make(map[uint64]entities.Listing),
		assetIndex:    make(map[string]uint64),
		offers:        make(map[string]entities.Offer),
		nextListingID: 1,
		outbox:        make(map[string]ports.OutboxMessage),
		outboxOrder:   make([]string, 0),
		outboxSent:    make(map[string]time.Time),
		logger:        application.ResolveLogger(logger),
	}
}

func assetKey(contract, assetID string) string {
	return contract + "/" + assetID
}

func offerKey(listingID uint64, offeror string) string {
	return strconv.FormatUint(listingID, 10) + "/" + offeror
}

func (s *Store) CreateListing(_ context.Context, listing entities.Listing) (entities.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assetKey(listing.AssetContract, listing.AssetID)
	if _, exists := s.assetIndex[key]; exists {
		return entities.Listing{}, domainerrors.ErrListingConflict
	}

	listing.ListingID = s.nextListingID
	s.nextListingID++
	s.listings[listing.ListingID] = listing
	s.assetIndex[key] = listing.ListingID

	s.logger.Debug("listing stored",
		"event", "memory_create_listing",
		"module", "marketplace-trading/trading-service",
		"layer", "adapter",
		"listing_id", listing.ListingID,
	)
	return listing, nil
}

func (s *Store) GetListing(_ context.Context, listingID uint64) (entities.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[listingID]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	return listing, nil
}

func (s *Store) GetListingByAsset(_ context.Context, contract string, assetID string) (entities.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.assetIndex[assetKey(contract, assetID)]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	listing, ok := s.listings[id]
	if !ok {
		return entities.Listing{}, domainerrors.ErrRepositoryInvariantBroke
	}
	return listing, nil
}

func (s *Store) ListListings(_ context.Context, filter ports.ListingFilter) ([]entities.Listing, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner := strings.TrimSpace(filter.Owner)
	filtered := make([]entities.Listing, 0, len(s.listings))
	for _, listing := range s.listings {
		if owner != "" && listing.Owner != owner {
			continue
		}
		filtered = append(filtered, listing)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].ListingID < filtered[j].ListingID
	})

	start := decodeCursor(filter.Cursor)
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + filter.Limit
	if filter.Limit <= 0 {
		end = start + 20
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	page := append([]entities.Listing(nil), filtered[start:end]...)
	nextCursor := ""
	if end < len(filtered) {
		nextCursor = encodeCursor(end)
	}
	return page, nextCursor, nil
}

func (s *Store) UpdateListing(_ context.Context, listing entities.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[listing.ListingID]; !ok {
		return domainerrors.ErrListingNotFound
	}
	s.listings[listing.ListingID] = listing
	return nil
}

func (s *Store) DeleteListing(_ context.Context, listingID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[listingID]
	if !ok {
		return domainerrors.ErrListingNotFound
	}
	delete(s.listings, listingID)
	delete(s.assetIndex, assetKey(listing.AssetContract, listing.AssetID))
	return nil
}

func (s *Store) RestoreListing(_ context.Context, listing entities.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.listings[listing.ListingID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.listings[listing.ListingID] = listing
	s.assetIndex[assetKey(listing.AssetContract, listing.AssetID)] = listing.ListingID
	return nil
}

func (s *Store) GetOffer(_ context.Context, listingID uint64, offeror string) (entities.Offer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offer, ok := s.offers[offerKey(listingID, offeror)]
	if !ok {
		return entities.Offer{}, false, nil
	}
	return offer, true, nil
}

func (s *Store) PutOffer(_ context.Context, offer entities.Offer) (entities.Offer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := offerKey(offer.ListingID, offer.Offeror)
	previous, replaced := s.offers[key]
	s.offers[key] = offer
	return previous, replaced, nil
}

func (s *Store) DeleteOffer(_ context.Context, listingID uint64, offeror string) (entities.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := offerKey(listingID, offeror)
	offer, ok := s.offers[key]
	if !ok {
		return entities.Offer{}, domainerrors.ErrOfferNotFound
	}
	delete(s.offers, key)
	return offer, nil
}

func (s *Store) RestoreOffer(_ context.Context, offer entities.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := offerKey(offer.ListingID, offer.Offeror)
	if _, exists := s.offers[key]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.offers[key] = offer
	return nil
}

func (s *Store) ListOffersByListing(_ context.Context, listingID uint64) ([]entities.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]entities.Offer, 0)
	for _, offer := range s.offers {
		if offer.ListingID == listingID {
			result = append(result, offer)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Offeror < result[j].Offeror
	})
	return result, nil
}

func (s *Store) AppendOutbox(_ context.Context, event ports.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelope := ports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt,
		SourceService:    "trading-service",
		TraceID:          event.EventID,
		SchemaVersion:    1,
		PartitionKeyPath: "listing_id",
		PartitionKey:     event.PartitionKey,
		Data:             event.Data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox[event.EventID] = ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}
	s.outboxOrder = append(s.outboxOrder, event.EventID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, sent := s.outboxSent[id]; sent {
			continue
		}
		if msg, ok := s.outbox[id]; ok {
			messages = append(messages, msg)
		}
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

// OutboxEvents exposes appended facts for tests/inspection.
func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if evt, ok := s.outbox[id]; ok {
			events = append(events, evt)
		}
	}
	return events
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return fmt.Sprintf("mkt-%d", s.sequence), nil
}

func decodeCursor(cursor string) int {
	if strings.TrimSpace(cursor) == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	index, err := strconv.Atoi(string(raw))
	if err != nil || index < 0 {
		return 0
	}
	return index
}

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

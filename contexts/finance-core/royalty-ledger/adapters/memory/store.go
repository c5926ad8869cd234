package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	application "treehauz/contexts/finance-core/royalty-ledger/application"
	"treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	domainerrors "treehauz/contexts/finance-core/royalty-ledger/domain/errors"
	"treehauz/contexts/finance-core/royalty-ledger/ports"
)

// Store is the in-memory ledger adapter for local runtime and tests. One
// mutex serializes every mutation.
type Store struct {
	mu          sync.Mutex
	accounts    map[string]entities.Account
	pools       map[string]entities.RoyaltyPool
	feeBps      uint64
	outbox      map[string]ports.OutboxMessage
	outboxOrder []string
	outboxSent  map[string]time.Time
	sequence    uint64
	logger      *slog.Logger
}

func NewStore(feeBps uint64, logger *slog.Logger) *Store {
	return &Store{
		accounts:    make(map[string]entities.Account),
		pools:       make(map[string]entities.RoyaltyPool),
		feeBps:      feeBps,
		outbox:      make(map[string]ports.OutboxMessage),
		outboxOrder: make([]string, 0),
		outboxSent:  make(map[string]time.Time),
		logger:      application.ResolveLogger(logger),
	}
}

func poolKey(contract, assetID string) string {
	return contract + "/" + assetID
}

func (s *Store) GetAccount(_ context.Context, owner string) (entities.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[owner]
	if !ok {
		return entities.Account{}, false, nil
	}
	return account, true, nil
}

func (s *Store) CreditSales(_ context.Context, owner string, amount uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[owner]
	if !ok {
		account = entities.Account{Owner: owner, CreatedAt: at.UTC()}
	}
	account.UnclaimedSales += amount
	account.UpdatedAt = at.UTC()
	s.accounts[owner] = account
	return nil
}

func (s *Store) DebitSales(_ context.Context, owner string, at time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[owner]
	if !ok || account.UnclaimedSales == 0 {
		return 0, nil
	}
	amount := account.UnclaimedSales
	account.UnclaimedSales = 0
	account.UpdatedAt = at.UTC()
	s.accounts[owner] = account
	return amount, nil
}

func (s *Store) RestoreSales(_ context.Context, owner string, amount uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[owner]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	account.UnclaimedSales += amount
	account.UpdatedAt = at.UTC()
	s.accounts[owner] = account
	return nil
}

func (s *Store) GetPool(_ context.Context, contract string, assetID string) (entities.RoyaltyPool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools[poolKey(contract, assetID)]
	if !ok {
		return entities.RoyaltyPool{}, false, nil
	}
	return clonePool(pool), true, nil
}

func (s *Store) ListPoolsForAccount(_ context.Context, account string) ([]entities.RoyaltyPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]entities.RoyaltyPool, 0)
	for _, pool := range s.pools {
		for _, receiver := range pool.Receivers {
			if receiver.Account == account {
				result = append(result, clonePool(pool))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AssetContract != result[j].AssetContract {
			return result[i].AssetContract < result[j].AssetContract
		}
		return result[i].AssetID < result[j].AssetID
	})
	return result, nil
}

func (s *Store) AccrueRoyaltyWithOutbox(
	_ context.Context,
	contract string,
	assetID string,
	amount uint64,
	receivers []entities.RoyaltyReceiver,
	at time.Time,
	event ports.LedgerEvent,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := poolKey(contract, assetID)
	pool, ok := s.pools[key]
	if !ok {
		pool = entities.RoyaltyPool{
			AssetContract: contract,
			AssetID:       assetID,
			Receivers:     append([]entities.RoyaltyReceiver(nil), receivers...),
			ClaimedBy:     make(map[string]uint64),
		}
	}
	pool.Accrued += amount
	pool.UpdatedAt = at.UTC()
	s.pools[key] = pool

	return s.appendOutboxLocked(event)
}

func (s *Store) ApplyRoyaltyClaim(_ context.Context, account string, claims []ports.PoolClaim, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total uint64
	for _, claim := range claims {
		pool, ok := s.pools[poolKey(claim.AssetContract, claim.AssetID)]
		if !ok {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		if pool.ClaimedBy == nil {
			pool.ClaimedBy = make(map[string]uint64)
		}
		pool.ClaimedBy[account] += claim.Amount
		pool.UpdatedAt = at.UTC()
		s.pools[poolKey(claim.AssetContract, claim.AssetID)] = pool
		total += claim.Amount
	}

	holder, ok := s.accounts[account]
	if !ok {
		holder = entities.Account{Owner: account, CreatedAt: at.UTC()}
	}
	holder.ClaimedRoyaltyTotal += total
	holder.UpdatedAt = at.UTC()
	s.accounts[account] = holder
	return nil
}

func (s *Store) RevertRoyaltyClaim(_ context.Context, account string, claims []ports.PoolClaim, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total uint64
	for _, claim := range claims {
		pool, ok := s.pools[poolKey(claim.AssetContract, claim.AssetID)]
		if !ok || pool.ClaimedBy[account] < claim.Amount {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		pool.ClaimedBy[account] -= claim.Amount
		pool.UpdatedAt = at.UTC()
		s.pools[poolKey(claim.AssetContract, claim.AssetID)] = pool
		total += claim.Amount
	}

	holder, ok := s.accounts[account]
	if !ok || holder.ClaimedRoyaltyTotal < total {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	holder.ClaimedRoyaltyTotal -= total
	holder.UpdatedAt = at.UTC()
	s.accounts[account] = holder
	return nil
}

func (s *Store) ResetPoolWithOutbox(_ context.Context, contract string, assetID string, event ports.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := poolKey(contract, assetID)
	if _, ok := s.pools[key]; !ok {
		return domainerrors.ErrPoolNotFound
	}
	delete(s.pools, key)
	return s.appendOutboxLocked(event)
}

func (s *Store) GetFeeBps(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeBps, nil
}

func (s *Store) SetFeeBpsWithOutbox(_ context.Context, feeBps uint64, event ports.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feeBps = feeBps
	return s.appendOutboxLocked(event)
}

func (s *Store) AppendOutbox(_ context.Context, event ports.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendOutboxLocked(event)
}

func (s *Store) appendOutboxLocked(event ports.LedgerEvent) error {
	envelope := ports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt,
		SourceService:    "royalty-ledger",
		TraceID:          event.EventID,
		SchemaVersion:    1,
		PartitionKeyPath: "partition_key",
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
	s.mu.Lock()
	defer s.mu.Unlock()

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
	s.mu.Lock()
	defer s.mu.Unlock()

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
	return fmt.Sprintf("ldg-%d", s.sequence), nil
}

func clonePool(pool entities.RoyaltyPool) entities.RoyaltyPool {
	cloned := pool
	cloned.Receivers = append([]entities.RoyaltyReceiver(nil), pool.Receivers...)
	cloned.ClaimedBy = make(map[string]uint64, len(pool.ClaimedBy))
	for account, amount := range pool.ClaimedBy {
		cloned.ClaimedBy[account] = amount
	}
	return cloned
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	application "treehauz/contexts/identity-access/access-guard/application"
	"treehauz/contexts/identity-access/access-guard/domain/entities"
	domainerrors "treehauz/contexts/identity-access/access-guard/domain/errors"
	"treehauz/contexts/identity-access/access-guard/ports"
)

// Store is an in-memory adapter implementing the access-guard ports for local
// runtime and tests. It is not intended as production persistence.
type Store struct {
	mu           sync.RWMutex
	roles        map[string]map[entities.Role]entities.RoleAssignment
	marketPaused bool
	sellerPauses map[string]entities.SellerPause
	outbox       map[string]ports.OutboxMessage
	outboxOrder  []string
	outboxSent   map[string]time.Time
	sequence     uint64
	logger       *slog.Logger
}

// NewStore seeds initial role assignments and the global pause flag.
func NewStore(seedRoles []entities.RoleAssignment, marketPaused bool, logger *slog.Logger) *Store {
	roles := make(map[string]map[entities.Role]entities.RoleAssignment)
	for _, assignment := range seedRoles {
		byRole, ok := roles[assignment.Account]
		if !ok {
			byRole = make(map[entities.Role]entities.RoleAssignment)
			roles[assignment.Account] = byRole
		}
		byRole[assignment.Role] = assignment
	}
	return &Store{
		roles:        roles,
		marketPaused: marketPaused,
		sellerPauses: make(map[string]entities.SellerPause),
		outbox:       make(map[string]ports.OutboxMessage),
		outboxOrder:  make([]string, 0),
		outboxSent:   make(map[string]time.Time),
		logger:       application.ResolveLogger(logger),
	}
}

func (s *Store) HasRole(_ context.Context, account string, role entities.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRole, ok := s.roles[account]
	if !ok {
		return false, nil
	}
	_, has := byRole[role]
	return has, nil
}

func (s *Store) ListRoles(_ context.Context, account string) ([]entities.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assignments := make([]entities.RoleAssignment, 0, len(s.roles[account]))
	for _, assignment := range s.roles[account] {
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

func (s *Store) GrantRole(_ context.Context, assignment entities.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRole, ok := s.roles[assignment.Account]
	if !ok {
		byRole = make(map[entities.Role]entities.RoleAssignment)
		s.roles[assignment.Account] = byRole
	}
	byRole[assignment.Role] = assignment
	return nil
}

func (s *Store) RevokeRole(_ context.Context, account string, role entities.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRole, ok := s.roles[account]
	if !ok {
		return domainerrors.ErrRoleRequired
	}
	if _, has := byRole[role]; !has {
		return domainerrors.ErrRoleRequired
	}
	delete(byRole, role)
	return nil
}

func (s *Store) MarketPaused(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marketPaused, nil
}

func (s *Store) SetMarketPausedWithOutbox(_ context.Context, paused bool, event ports.GuardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marketPaused = paused
	return s.appendOutboxLocked(event)
}

func (s *Store) SellerPaused(_ context.Context, seller string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pause, ok := s.sellerPauses[seller]
	if !ok {
		return false, nil
	}
	return pause.Paused, nil
}

func (s *Store) SetSellerPausedWithOutbox(_ context.Context, pause entities.SellerPause, event ports.GuardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sellerPauses[pause.Seller] = pause
	return s.appendOutboxLocked(event)
}

func (s *Store) appendOutboxLocked(event ports.GuardEvent) error {
	envelope := ports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt,
		SourceService:    "access-guard",
		TraceID:          event.EventID,
		SchemaVersion:    1,
		PartitionKeyPath: "scope",
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
		return fmt.Errorf("unknown outbox id %s", outboxID)
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("guard-%d", value), nil
}

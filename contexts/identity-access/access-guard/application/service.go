package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"treehauz/contexts/identity-access/access-guard/domain/entities"
	domainerrors "treehauz/contexts/identity-access/access-guard/domain/errors"
	"treehauz/contexts/identity-access/access-guard/ports"
)

const pauseChangedEventType = "pause.changed"

// Service implements role checks and pause administration. Activity checks
// run first in every marketplace operation, so they stay read-only and cheap.
type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// EnsureActive rejects callers while the marketplace, or the given seller, is
// paused.
func (s Service) EnsureActive(ctx context.Context, seller string) error {
	paused, err := s.Repo.MarketPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return domainerrors.ErrMarketplacePaused
	}
	if strings.TrimSpace(seller) == "" {
		return nil
	}
	sellerPaused, err := s.Repo.SellerPaused(ctx, seller)
	if err != nil {
		return err
	}
	if sellerPaused {
		return domainerrors.ErrSellerPaused
	}
	return nil
}

func (s Service) RequireAdmin(ctx context.Context, caller string) error {
	return s.requireRole(ctx, caller, entities.RoleAdmin)
}

func (s Service) RequireAssetAdapter(ctx context.Context, caller string) error {
	return s.requireRole(ctx, caller, entities.RoleAssetAdapter)
}

func (s Service) requireRole(ctx context.Context, caller string, role entities.Role) error {
	if strings.TrimSpace(caller) == "" {
		return domainerrors.ErrInvalidAccount
	}
	ok, err := s.Repo.HasRole(ctx, caller, role)
	if err != nil {
		return err
	}
	if !ok {
		return domainerrors.ErrRoleRequired
	}
	return nil
}

func (s Service) SetMarketPaused(ctx context.Context, caller string, paused bool) error {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	now := s.now()
	event, err := s.pauseEvent(ctx, "market", paused, now)
	if err != nil {
		return err
	}
	if err := s.Repo.SetMarketPausedWithOutbox(ctx, paused, event); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("market pause state changed",
		"event", "market_pause_changed",
		"module", "identity-access/access-guard",
		"layer", "application",
		"paused", paused,
		"admin", caller,
	)
	return nil
}

func (s Service) SetSellerPaused(ctx context.Context, caller string, seller string, paused bool) error {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if strings.TrimSpace(seller) == "" {
		return domainerrors.ErrInvalidAccount
	}
	now := s.now()
	event, err := s.pauseEvent(ctx, seller, paused, now)
	if err != nil {
		return err
	}
	pause := entities.SellerPause{Seller: seller, Paused: paused, UpdatedAt: now}
	if err := s.Repo.SetSellerPausedWithOutbox(ctx, pause, event); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("seller pause state changed",
		"event", "seller_pause_changed",
		"module", "identity-access/access-guard",
		"layer", "application",
		"seller", seller,
		"paused", paused,
		"admin", caller,
	)
	return nil
}

func (s Service) GrantRole(ctx context.Context, caller string, account string, role entities.Role) error {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if strings.TrimSpace(account) == "" {
		return domainerrors.ErrInvalidAccount
	}
	if !role.Known() {
		return domainerrors.ErrUnknownRole
	}
	return s.Repo.GrantRole(ctx, entities.RoleAssignment{
		Account:   account,
		Role:      role,
		GrantedBy: caller,
		GrantedAt: s.now(),
	})
}

func (s Service) RevokeRole(ctx context.Context, caller string, account string, role entities.Role) error {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if !role.Known() {
		return domainerrors.ErrUnknownRole
	}
	return s.Repo.RevokeRole(ctx, account, role)
}

func (s Service) pauseEvent(ctx context.Context, scope string, paused bool, now time.Time) (ports.GuardEvent, error) {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.GuardEvent{}, err
	}
	data, err := json.Marshal(map[string]any{
		"scope":  scope,
		"paused": paused,
	})
	if err != nil {
		return ports.GuardEvent{}, err
	}
	return ports.GuardEvent{
		EventID:      eventID,
		EventType:    pauseChangedEventType,
		PartitionKey: scope,
		OccurredAt:   now,
		Data:         data,
	}, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

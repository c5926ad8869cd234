package application_test

import (
	"context"
	"errors"
	"testing"

	accessguard "treehauz/contexts/identity-access/access-guard"
	"treehauz/contexts/identity-access/access-guard/domain/entities"
	domainerrors "treehauz/contexts/identity-access/access-guard/domain/errors"
)

func newModule(paused bool) accessguard.Module {
	return accessguard.NewInMemoryModule([]entities.RoleAssignment{
		{Account: "admin-1", Role: entities.RoleAdmin, GrantedBy: "seed"},
	}, paused, nil)
}

func TestEnsureActiveHonorsMarketPause(t *testing.T) {
	ctx := context.Background()
	module := newModule(false)

	if err := module.Service.EnsureActive(ctx, "seller-1"); err != nil {
		t.Fatalf("expected active marketplace, got %v", err)
	}

	if err := module.Service.SetMarketPaused(ctx, "admin-1", true); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := module.Service.EnsureActive(ctx, "seller-1"); !errors.Is(err, domainerrors.ErrMarketplacePaused) {
		t.Fatalf("expected marketplace paused, got %v", err)
	}

	if err := module.Service.SetMarketPaused(ctx, "admin-1", false); err != nil {
		t.Fatalf("unpause failed: %v", err)
	}
	if err := module.Service.EnsureActive(ctx, "seller-1"); err != nil {
		t.Fatalf("expected active marketplace after unpause, got %v", err)
	}
}

func TestEnsureActiveHonorsSellerPause(t *testing.T) {
	ctx := context.Background()
	module := newModule(false)

	if err := module.Service.SetSellerPaused(ctx, "admin-1", "seller-1", true); err != nil {
		t.Fatalf("seller pause failed: %v", err)
	}
	if err := module.Service.EnsureActive(ctx, "seller-1"); !errors.Is(err, domainerrors.ErrSellerPaused) {
		t.Fatalf("expected seller paused, got %v", err)
	}
	// Other sellers are unaffected.
	if err := module.Service.EnsureActive(ctx, "seller-2"); err != nil {
		t.Fatalf("expected other seller active, got %v", err)
	}
}

func TestPauseRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	module := newModule(false)

	if err := module.Service.SetMarketPaused(ctx, "seller-1", true); !errors.Is(err, domainerrors.ErrRoleRequired) {
		t.Fatalf("expected role rejection, got %v", err)
	}
	if err := module.Service.SetSellerPaused(ctx, "", "seller-1", true); !errors.Is(err, domainerrors.ErrInvalidAccount) {
		t.Fatalf("expected invalid caller rejection, got %v", err)
	}
}

func TestRoleGrantAndRevoke(t *testing.T) {
	ctx := context.Background()
	module := newModule(false)

	if err := module.Service.RequireAssetAdapter(ctx, "adapter-1"); !errors.Is(err, domainerrors.ErrRoleRequired) {
		t.Fatalf("expected missing role, got %v", err)
	}

	if err := module.Service.GrantRole(ctx, "admin-1", "adapter-1", entities.RoleAssetAdapter); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if err := module.Service.RequireAssetAdapter(ctx, "adapter-1"); err != nil {
		t.Fatalf("expected granted role accepted, got %v", err)
	}

	if err := module.Service.GrantRole(ctx, "admin-1", "someone", "superuser"); !errors.Is(err, domainerrors.ErrUnknownRole) {
		t.Fatalf("expected unknown role rejection, got %v", err)
	}
	if err := module.Service.GrantRole(ctx, "seller-1", "adapter-2", entities.RoleAssetAdapter); !errors.Is(err, domainerrors.ErrRoleRequired) {
		t.Fatalf("expected admin-only grant, got %v", err)
	}

	if err := module.Service.RevokeRole(ctx, "admin-1", "adapter-1", entities.RoleAssetAdapter); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := module.Service.RequireAssetAdapter(ctx, "adapter-1"); !errors.Is(err, domainerrors.ErrRoleRequired) {
		t.Fatalf("expected revoked role rejected, got %v", err)
	}
}

func TestSeededPauseState(t *testing.T) {
	module := newModule(true)
	if err := module.Service.EnsureActive(context.Background(), ""); !errors.Is(err, domainerrors.ErrMarketplacePaused) {
		t.Fatalf("expected seeded pause honored, got %v", err)
	}
}

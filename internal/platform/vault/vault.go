package vault

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrInsufficientCustody = errors.New("vault custody balance too low")

// Vault is the in-process value custodian. Deposits add to the custodied
// total; releases subtract and may never exceed what was deposited, so the
// marketplace can only pay out money it actually holds.
type Vault struct {
	mu        sync.Mutex
	custodied uint64
	deposits  map[string]uint64
	releases  map[string]uint64
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		deposits: make(map[string]uint64),
		releases: make(map[string]uint64),
		logger:   logger,
	}
}

func (v *Vault) Deposit(_ context.Context, from string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.custodied += amount
	v.deposits[from] += amount

	v.logger.Debug("value deposited",
		"event", "vault_deposit",
		"module", "internal/platform/vault",
		"layer", "platform",
		"from", from,
		"amount", amount,
	)
	return nil
}

func (v *Vault) Release(_ context.Context, to string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount > v.custodied {
		return ErrInsufficientCustody
	}
	v.custodied -= amount
	v.releases[to] += amount

	v.logger.Debug("value released",
		"event", "vault_release",
		"module", "internal/platform/vault",
		"layer", "platform",
		"to", to,
		"amount", amount,
	)
	return nil
}

// Custodied reports how much value the vault currently holds.
func (v *Vault) Custodied() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.custodied
}

// ReleasedTo reports the lifetime total released to an account.
func (v *Vault) ReleasedTo(account string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.releases[account]
}

// DepositedBy reports the lifetime total deposited by an account.
func (v *Vault) DepositedBy(account string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deposits[account]
}

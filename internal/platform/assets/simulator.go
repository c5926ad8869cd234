package assets

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	ledgerentities "treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	tradingentities "treehauz/contexts/marketplace-trading/trading-service/domain/entities"
)

var (
	ErrUnknownContract   = errors.New("unknown asset contract")
	ErrInsufficientUnits = errors.New("insufficient asset units")
)

// Contract seeds one simulated asset contract.
type Contract struct {
	Address string
	Kind    tradingentities.AssetKind
	// Native marks contracts minted by the marketplace; only native tokens
	// accrue into royalty pools.
	Native bool
	// ForeignRoyaltyBps drives RoyaltyInfo for non-native contracts.
	ForeignRoyaltyBps      uint64
	ForeignRoyaltyReceiver string
}

type token struct {
	minter    string
	receivers []ledgerentities.RoyaltyReceiver
	balances  map[string]uint64
}

// Simulator is an in-process stand-in for the external asset adapter. It
// backs both the trading-side ownership/transfer port and the ledger-side
// royalty metadata port so a full marketplace can run without external
// collaborators.
type Simulator struct {
	mu        sync.Mutex
	contracts map[string]Contract
	tokens    map[string]*token
	logger    *slog.Logger
}

func NewSimulator(contracts []Contract, logger *slog.Logger) *Simulator {
	indexed := make(map[string]Contract, len(contracts))
	for _, contract := range contracts {
		indexed[contract.Address] = contract
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		contracts: indexed,
		tokens:    make(map[string]*token),
		logger:    logger,
	}
}

func tokenKey(contract, assetID string) string {
	return contract + "/" + assetID
}

// Mint creates units of a token and records its minter and royalty split.
func (s *Simulator) Mint(
	contract string,
	assetID string,
	minter string,
	quantity uint64,
	receivers []ledgerentities.RoyaltyReceiver,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[contract]; !ok {
		return ErrUnknownContract
	}
	key := tokenKey(contract, assetID)
	entry, ok := s.tokens[key]
	if !ok {
		entry = &token{
			minter:    minter,
			receivers: append([]ledgerentities.RoyaltyReceiver(nil), receivers...),
			balances:  make(map[string]uint64),
		}
		s.tokens[key] = entry
	}
	entry.balances[minter] += quantity
	return nil
}

func (s *Simulator) KindOf(_ context.Context, contract string) (tradingentities.AssetKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.contracts[contract]
	if !ok {
		return "", ErrUnknownContract
	}
	return entry.Kind, nil
}

func (s *Simulator) BalanceOf(_ context.Context, contract string, assetID string, owner string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[contract]; !ok {
		return 0, ErrUnknownContract
	}
	entry, ok := s.tokens[tokenKey(contract, assetID)]
	if !ok {
		return 0, nil
	}
	return entry.balances[owner], nil
}

func (s *Simulator) Transfer(
	_ context.Context,
	contract string,
	from string,
	to string,
	assetID string,
	quantity uint64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[contract]; !ok {
		return ErrUnknownContract
	}
	entry, ok := s.tokens[tokenKey(contract, assetID)]
	if !ok || entry.balances[from] < quantity {
		return ErrInsufficientUnits
	}
	entry.balances[from] -= quantity
	entry.balances[to] += quantity

	s.logger.Debug("asset transferred",
		"event", "asset_transfer",
		"module", "internal/platform/assets",
		"layer", "platform",
		"contract", contract,
		"asset_id", assetID,
		"from", from,
		"to", to,
		"quantity", quantity,
	)
	return nil
}

func (s *Simulator) IsNative(_ context.Context, contract string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.contracts[contract]
	if !ok {
		return false, ErrUnknownContract
	}
	return entry.Native, nil
}

func (s *Simulator) MinterOf(_ context.Context, contract string, assetID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[contract]; !ok {
		return "", ErrUnknownContract
	}
	entry, ok := s.tokens[tokenKey(contract, assetID)]
	if !ok {
		return "", nil
	}
	return entry.minter, nil
}

func (s *Simulator) RoyaltyReceivers(
	_ context.Context,
	contract string,
	assetID string,
) ([]ledgerentities.RoyaltyReceiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[contract]; !ok {
		return nil, ErrUnknownContract
	}
	entry, ok := s.tokens[tokenKey(contract, assetID)]
	if !ok {
		return nil, nil
	}
	return append([]ledgerentities.RoyaltyReceiver(nil), entry.receivers...), nil
}

// RoyaltyInfo answers royalty terms for foreign contracts the way external
// registries do: one receiver, one amount per sale.
func (s *Simulator) RoyaltyInfo(
	_ context.Context,
	contract string,
	_ string,
	saleAmount uint64,
) (string, uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.contracts[contract]
	if !ok {
		return "", 0, false, ErrUnknownContract
	}
	if entry.Native || entry.ForeignRoyaltyBps == 0 || entry.ForeignRoyaltyReceiver == "" {
		return "", 0, false, nil
	}
	amount := saleAmount * entry.ForeignRoyaltyBps / ledgerentities.MaxBasisPoints
	return entry.ForeignRoyaltyReceiver, amount, true, nil
}

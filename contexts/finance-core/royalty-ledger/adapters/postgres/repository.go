package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"treehauz/contexts/finance-core/royalty-ledger/domain/entities"
	domainerrors "treehauz/contexts/finance-core/royalty-ledger/domain/errors"
	"treehauz/contexts/finance-core/royalty-ledger/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	feeConfigRow = "market_fee"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetAccount(ctx context.Context, owner string) (entities.Account, bool, error) {
	var row accountModel
	err := r.db.WithContext(ctx).
		Where("owner = ?", strings.TrimSpace(owner)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Account{}, false, nil
		}
		return entities.Account{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CreditSales(ctx context.Context, owner string, amount uint64, at time.Time) error {
	row := accountModel{
		Owner:          strings.TrimSpace(owner),
		UnclaimedSales: amount,
		CreatedAt:      at.UTC(),
		UpdatedAt:      at.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner"}},
			DoUpdates: clause.Assignments(map[string]any{
				"unclaimed_sales": gorm.Expr("ledger_accounts.unclaimed_sales + ?", amount),
				"updated_at":      at.UTC(),
			}),
		}).
		Create(&row).
		Error
}

func (r *Repository) DebitSales(ctx context.Context, owner string, at time.Time) (uint64, error) {
	var amount uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row accountModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner = ?", strings.TrimSpace(owner)).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		amount = row.UnclaimedSales
		if amount == 0 {
			return nil
		}
		return tx.Model(&accountModel{}).
			Where("owner = ?", row.Owner).
			Updates(map[string]any{
				"unclaimed_sales": 0,
				"updated_at":      at.UTC(),
			}).
			Error
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (r *Repository) RestoreSales(ctx context.Context, owner string, amount uint64, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("owner = ?", strings.TrimSpace(owner)).
		Updates(map[string]any{
			"unclaimed_sales": gorm.Expr("unclaimed_sales + ?", amount),
			"updated_at":      at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func (r *Repository) GetPool(ctx context.Context, contract string, assetID string) (entities.RoyaltyPool, bool, error) {
	var row poolModel
	err := r.db.WithContext(ctx).
		Where("asset_contract = ? AND asset_id = ?", strings.TrimSpace(contract), strings.TrimSpace(assetID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RoyaltyPool{}, false, nil
		}
		return entities.RoyaltyPool{}, false, err
	}

	pool, err := r.hydratePool(ctx, row)
	if err != nil {
		return entities.RoyaltyPool{}, false, err
	}
	return pool, true, nil
}

func (r *Repository) ListPoolsForAccount(ctx context.Context, account string) ([]entities.RoyaltyPool, error) {
	var receiverRows []poolReceiverModel
	if err := r.db.WithContext(ctx).
		Where("account = ?", strings.TrimSpace(account)).
		Order("asset_contract ASC, asset_id ASC").
		Find(&receiverRows).
		Error; err != nil {
		return nil, err
	}

	pools := make([]entities.RoyaltyPool, 0, len(receiverRows))
	for _, receiverRow := range receiverRows {
		var row poolModel
		err := r.db.WithContext(ctx).
			Where("asset_contract = ? AND asset_id = ?", receiverRow.AssetContract, receiverRow.AssetID).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		pool, err := r.hydratePool(ctx, row)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

func (r *Repository) hydratePool(ctx context.Context, row poolModel) (entities.RoyaltyPool, error) {
	var receiverRows []poolReceiverModel
	if err := r.db.WithContext(ctx).
		Where("asset_contract = ? AND asset_id = ?", row.AssetContract, row.AssetID).
		Order("account ASC").
		Find(&receiverRows).
		Error; err != nil {
		return entities.RoyaltyPool{}, err
	}

	var claimRows []poolClaimModel
	if err := r.db.WithContext(ctx).
		Where("asset_contract = ? AND asset_id = ?", row.AssetContract, row.AssetID).
		Find(&claimRows).
		Error; err != nil {
		return entities.RoyaltyPool{}, err
	}

	receivers := make([]entities.RoyaltyReceiver, 0, len(receiverRows))
	for _, receiverRow := range receiverRows {
		receivers = append(receivers, entities.RoyaltyReceiver{
			Account:  receiverRow.Account,
			ShareBps: receiverRow.ShareBps,
		})
	}
	claimed := make(map[string]uint64, len(claimRows))
	for _, claimRow := range claimRows {
		claimed[claimRow.Account] = claimRow.Claimed
	}

	return entities.RoyaltyPool{
		AssetContract: row.AssetContract,
		AssetID:       row.AssetID,
		Accrued:       row.Accrued,
		Receivers:     receivers,
		ClaimedBy:     claimed,
		UpdatedAt:     row.UpdatedAt.UTC(),
	}, nil
}

func (r *Repository) AccrueRoyaltyWithOutbox(
	ctx context.Context,
	contract string,
	assetID string,
	amount uint64,
	receivers []entities.RoyaltyReceiver,
	at time.Time,
	event ports.LedgerEvent,
) error {
	contract = strings.TrimSpace(contract)
	assetID = strings.TrimSpace(assetID)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := poolModel{
			AssetContract: contract,
			AssetID:       assetID,
			Accrued:       amount,
			UpdatedAt:     at.UTC(),
		}
		createResult := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "asset_contract"}, {Name: "asset_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"accrued":    gorm.Expr("royalty_pools.accrued + ?", amount),
				"updated_at": at.UTC(),
			}),
		}).Create(&row)
		if createResult.Error != nil {
			return createResult.Error
		}

		for _, receiver := range receivers {
			receiverRow := poolReceiverModel{
				AssetContract: contract,
				AssetID:       assetID,
				Account:       strings.TrimSpace(receiver.Account),
				ShareBps:      receiver.ShareBps,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "asset_contract"}, {Name: "asset_id"}, {Name: "account"}},
				DoNothing: true,
			}).Create(&receiverRow).Error; err != nil {
				return err
			}
		}

		return insertOutboxEventTx(tx, event)
	})
}

func (r *Repository) ApplyRoyaltyClaim(ctx context.Context, account string, claims []ports.PoolClaim, at time.Time) error {
	account = strings.TrimSpace(account)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total uint64
		for _, claim := range claims {
			row := poolClaimModel{
				AssetContract: strings.TrimSpace(claim.AssetContract),
				AssetID:       strings.TrimSpace(claim.AssetID),
				Account:       account,
				Claimed:       claim.Amount,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "asset_contract"}, {Name: "asset_id"}, {Name: "account"}},
				DoUpdates: clause.Assignments(map[string]any{
					"claimed": gorm.Expr("royalty_pool_claims.claimed + ?", claim.Amount),
				}),
			}).Create(&row).Error; err != nil {
				return err
			}
			total += claim.Amount
		}

		holder := accountModel{
			Owner:               account,
			ClaimedRoyaltyTotal: total,
			CreatedAt:           at.UTC(),
			UpdatedAt:           at.UTC(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner"}},
			DoUpdates: clause.Assignments(map[string]any{
				"claimed_royalty_total": gorm.Expr("ledger_accounts.claimed_royalty_total + ?", total),
				"updated_at":            at.UTC(),
			}),
		}).Create(&holder).Error
	})
}

func (r *Repository) RevertRoyaltyClaim(ctx context.Context, account string, claims []ports.PoolClaim, at time.Time) error {
	account = strings.TrimSpace(account)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total uint64
		for _, claim := range claims {
			result := tx.Model(&poolClaimModel{}).
				Where(
					"asset_contract = ? AND asset_id = ? AND account = ? AND claimed >= ?",
					strings.TrimSpace(claim.AssetContract), strings.TrimSpace(claim.AssetID), account, claim.Amount,
				).
				Update("claimed", gorm.Expr("claimed - ?", claim.Amount))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			total += claim.Amount
		}

		result := tx.Model(&accountModel{}).
			Where("owner = ? AND claimed_royalty_total >= ?", account, total).
			Updates(map[string]any{
				"claimed_royalty_total": gorm.Expr("claimed_royalty_total - ?", total),
				"updated_at":            at.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return nil
	})
}

func (r *Repository) ResetPoolWithOutbox(ctx context.Context, contract string, assetID string, event ports.LedgerEvent) error {
	contract = strings.TrimSpace(contract)
	assetID = strings.TrimSpace(assetID)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("asset_contract = ? AND asset_id = ?", contract, assetID).
			Delete(&poolModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrPoolNotFound
		}
		if err := tx.Where("asset_contract = ? AND asset_id = ?", contract, assetID).
			Delete(&poolReceiverModel{}).
			Error; err != nil {
			return err
		}
		if err := tx.Where("asset_contract = ? AND asset_id = ?", contract, assetID).
			Delete(&poolClaimModel{}).
			Error; err != nil {
			return err
		}
		return insertOutboxEventTx(tx, event)
	})
}

func (r *Repository) GetFeeBps(ctx context.Context) (uint64, error) {
	var row feeConfigModel
	err := r.db.WithContext(ctx).
		Where("name = ?", feeConfigRow).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.FeeBps, nil
}

func (r *Repository) SetFeeBpsWithOutbox(ctx context.Context, feeBps uint64, event ports.LedgerEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := feeConfigModel{
			Name:      feeConfigRow,
			FeeBps:    feeBps,
			UpdatedAt: event.OccurredAt.UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"fee_bps":    feeBps,
				"updated_at": event.OccurredAt.UTC(),
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return insertOutboxEventTx(tx, event)
	})
}

func (r *Repository) AppendOutbox(ctx context.Context, event ports.LedgerEvent) error {
	return insertOutboxEventTx(r.db.WithContext(ctx), event)
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func insertOutboxEventTx(tx *gorm.DB, event ports.LedgerEvent) error {
	envelope := ports.EventEnvelope{
		EventID:          strings.TrimSpace(event.EventID),
		EventType:        strings.TrimSpace(event.EventType),
		OccurredAt:       event.OccurredAt.UTC(),
		SourceService:    "royalty-ledger",
		TraceID:          strings.TrimSpace(event.EventID),
		SchemaVersion:    1,
		PartitionKeyPath: "partition_key",
		PartitionKey:     strings.TrimSpace(event.PartitionKey),
		Data:             event.Data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt,
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

type accountModel struct {
	Owner               string    `gorm:"column:owner;primaryKey"`
	UnclaimedSales      uint64    `gorm:"column:unclaimed_sales"`
	ClaimedRoyaltyTotal uint64    `gorm:"column:claimed_royalty_total"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string {
	return "ledger_accounts"
}

func (m accountModel) toEntity() entities.Account {
	return entities.Account{
		Owner:               m.Owner,
		UnclaimedSales:      m.UnclaimedSales,
		ClaimedRoyaltyTotal: m.ClaimedRoyaltyTotal,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

type poolModel struct {
	AssetContract string    `gorm:"column:asset_contract;primaryKey"`
	AssetID       string    `gorm:"column:asset_id;primaryKey"`
	Accrued       uint64    `gorm:"column:accrued"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (poolModel) TableName() string {
	return "royalty_pools"
}

type poolReceiverModel struct {
	AssetContract string `gorm:"column:asset_contract;primaryKey"`
	AssetID       string `gorm:"column:asset_id;primaryKey"`
	Account       string `gorm:"column:account;primaryKey"`
	ShareBps      uint64 `gorm:"column:share_bps"`
}

func (poolReceiverModel) TableName() string {
	return "royalty_pool_receivers"
}

type poolClaimModel struct {
	AssetContract string `gorm:"column:asset_contract;primaryKey"`
	AssetID       string `gorm:"column:asset_id;primaryKey"`
	Account       string `gorm:"column:account;primaryKey"`
	Claimed       uint64 `gorm:"column:claimed"`
}

func (poolClaimModel) TableName() string {
	return "royalty_pool_claims"
}

type feeConfigModel struct {
	Name      string    `gorm:"column:name;primaryKey"`
	FeeBps    uint64    `gorm:"column:fee_bps"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (feeConfigModel) TableName() string {
	return "ledger_fee_config"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "ledger_outbox"
}

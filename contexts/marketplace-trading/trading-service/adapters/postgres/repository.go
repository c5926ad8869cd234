package postgresadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"treehauz/contexts/marketplace-trading/trading-service/domain/entities"
	domainerrors "treehauz/contexts/marketplace-trading/trading-service/domain/errors"
	"treehauz/contexts/marketplace-trading/trading-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
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

func (r *Repository) CreateListing(ctx context.Context, listing entities.Listing) (entities.Listing, error) {
	row := listingModelFromEntity(listing)
	row.ListingID = 0
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return entities.Listing{}, domainerrors.ErrListingConflict
		}
		return entities.Listing{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetListing(ctx context.Context, listingID uint64) (entities.Listing, error) {
	var row listingModel
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, domainerrors.ErrListingNotFound
		}
		return entities.Listing{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetListingByAsset(ctx context.Context, contract string, assetID string) (entities.Listing, error) {
	var row listingModel
	err := r.db.WithContext(ctx).
		Where("asset_contract = ? AND asset_id = ?", strings.TrimSpace(contract), strings.TrimSpace(assetID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, domainerrors.ErrListingNotFound
		}
		return entities.Listing{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListListings(ctx context.Context, filter ports.ListingFilter) ([]entities.Listing, string, error) {
	tx := r.db.WithContext(ctx).Model(&listingModel{})
	if strings.TrimSpace(filter.Owner) != "" {
		tx = tx.Where("owner = ?", strings.TrimSpace(filter.Owner))
	}
	if after := decodeListingCursor(filter.Cursor); after > 0 {
		tx = tx.Where("listing_id > ?", after)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows []listingModel
	if err := tx.Order("listing_id ASC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = encodeListingCursor(rows[len(rows)-1].ListingID)
	}
	items := make([]entities.Listing, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nextCursor, nil
}

func (r *Repository) UpdateListing(ctx context.Context, listing entities.Listing) error {
	result := r.db.WithContext(ctx).
		Model(&listingModel{}).
		Where("listing_id = ?", listing.ListingID).
		Updates(map[string]any{
			"quantity":   listing.Quantity,
			"unit_price": listing.UnitPrice,
			"updated_at": listing.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrListingNotFound
	}
	return nil
}

func (r *Repository) DeleteListing(ctx context.Context, listingID uint64) error {
	result := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Delete(&listingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrListingNotFound
	}
	return nil
}

func (r *Repository) RestoreListing(ctx context.Context, listing entities.Listing) error {
	row := listingModelFromEntity(listing)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func (r *Repository) GetOffer(ctx context.Context, listingID uint64, offeror string) (entities.Offer, bool, error) {
	var row offerModel
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND offeror = ?", listingID, strings.TrimSpace(offeror)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Offer{}, false, nil
		}
		return entities.Offer{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) PutOffer(ctx context.Context, offer entities.Offer) (entities.Offer, bool, error) {
	var previous entities.Offer
	replaced := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing offerModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("listing_id = ? AND offeror = ?", offer.ListingID, strings.TrimSpace(offer.Offeror)).
			First(&existing).
			Error
		switch {
		case err == nil:
			previous = existing.toEntity()
			replaced = true
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		row := offerModelFromEntity(offer)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "listing_id"}, {Name: "offeror"}},
			UpdateAll: true,
		}).Create(&row).Error
	})
	if err != nil {
		return entities.Offer{}, false, err
	}
	return previous, replaced, nil
}

func (r *Repository) DeleteOffer(ctx context.Context, listingID uint64, offeror string) (entities.Offer, error) {
	var deleted entities.Offer

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row offerModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("listing_id = ? AND offeror = ?", listingID, strings.TrimSpace(offeror)).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrOfferNotFound
			}
			return err
		}
		deleted = row.toEntity()
		return tx.Where("listing_id = ? AND offeror = ?", listingID, strings.TrimSpace(offeror)).
			Delete(&offerModel{}).
			Error
	})
	if err != nil {
		return entities.Offer{}, err
	}
	return deleted, nil
}

func (r *Repository) RestoreOffer(ctx context.Context, offer entities.Offer) error {
	row := offerModelFromEntity(offer)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func (r *Repository) ListOffersByListing(ctx context.Context, listingID uint64) ([]entities.Offer, error) {
	var rows []offerModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("offeror ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Offer, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, event ports.MarketEvent) error {
	envelope := ports.EventEnvelope{
		EventID:          strings.TrimSpace(event.EventID),
		EventType:        strings.TrimSpace(event.EventType),
		OccurredAt:       event.OccurredAt.UTC(),
		SourceService:    "trading-service",
		TraceID:          strings.TrimSpace(event.EventID),
		SchemaVersion:    1,
		PartitionKeyPath: "listing_id",
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

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
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

type listingModel struct {
	ListingID     uint64    `gorm:"column:listing_id;primaryKey;autoIncrement"`
	AssetKind     string    `gorm:"column:asset_kind"`
	AssetContract string    `gorm:"column:asset_contract;uniqueIndex:idx_listing_asset"`
	AssetID       string    `gorm:"column:asset_id;uniqueIndex:idx_listing_asset"`
	Owner         string    `gorm:"column:owner"`
	Quantity      uint64    `gorm:"column:quantity"`
	UnitPrice     uint64    `gorm:"column:unit_price"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (listingModel) TableName() string {
	return "market_listings"
}

func listingModelFromEntity(item entities.Listing) listingModel {
	return listingModel{
		ListingID:     item.ListingID,
		AssetKind:     string(item.AssetKind),
		AssetContract: strings.TrimSpace(item.AssetContract),
		AssetID:       strings.TrimSpace(item.AssetID),
		Owner:         strings.TrimSpace(item.Owner),
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		CreatedAt:     item.CreatedAt.UTC(),
		UpdatedAt:     item.UpdatedAt.UTC(),
	}
}

func (m listingModel) toEntity() entities.Listing {
	return entities.Listing{
		ListingID:     m.ListingID,
		AssetKind:     entities.AssetKind(m.AssetKind),
		AssetContract: m.AssetContract,
		AssetID:       m.AssetID,
		Owner:         m.Owner,
		Quantity:      m.Quantity,
		UnitPrice:     m.UnitPrice,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

type offerModel struct {
	ListingID uint64    `gorm:"column:listing_id;primaryKey"`
	Offeror   string    `gorm:"column:offeror;primaryKey"`
	Quantity  uint64    `gorm:"column:quantity"`
	UnitPrice uint64    `gorm:"column:unit_price"`
	Escrowed  uint64    `gorm:"column:escrowed"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (offerModel) TableName() string {
	return "market_offers"
}

func offerModelFromEntity(item entities.Offer) offerModel {
	return offerModel{
		ListingID: item.ListingID,
		Offeror:   strings.TrimSpace(item.Offeror),
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Escrowed:  item.Escrowed,
		CreatedAt: item.CreatedAt.UTC(),
	}
}

func (m offerModel) toEntity() entities.Offer {
	return entities.Offer{
		ListingID: m.ListingID,
		Offeror:   m.Offeror,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		Escrowed:  m.Escrowed,
		CreatedAt: m.CreatedAt.UTC(),
	}
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
	return "market_outbox"
}

func decodeListingCursor(cursor string) uint64 {
	if strings.TrimSpace(cursor) == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	after, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return after
}

func encodeListingCursor(lastID uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(lastID, 10)))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stroydoc/upd-processor/internal/model"
)

// DistributedTotals are the per-line-item sums of already-committed
// distribution entries, used by the conservation check.
type DistributedTotals struct {
	LineItemID uuid.UUID
	Quantity   decimal.Decimal
	Amount     decimal.Decimal
}

// DistributionRepository persists distribution batches, entries and the
// downstream cost entries. Entries are append-only.
type DistributionRepository interface {
	CreateBatch(ctx context.Context, batch *model.DistributionBatch) error
	CreateCostEntries(ctx context.Context, entries []model.CostEntry) error
	FindBatchByFingerprint(ctx context.Context, documentID uuid.UUID, fingerprint string) (*model.DistributionBatch, error)
	SumByLineItem(ctx context.Context, documentID uuid.UUID) (map[uuid.UUID]DistributedTotals, error)
	ListEntries(ctx context.Context, documentID uuid.UUID) ([]model.DistributionEntry, error)
}

type distributionRepository struct {
	db *gorm.DB
}

func NewDistributionRepository(db *gorm.DB) DistributionRepository {
	return &distributionRepository{db: db}
}

func (r *distributionRepository) CreateBatch(ctx context.Context, batch *model.DistributionBatch) error {
	return GetDB(ctx, r.db).Create(batch).Error
}

func (r *distributionRepository) CreateCostEntries(ctx context.Context, entries []model.CostEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&entries).Error
}

func (r *distributionRepository) FindBatchByFingerprint(ctx context.Context, documentID uuid.UUID, fingerprint string) (*model.DistributionBatch, error) {
	var batch model.DistributionBatch
	err := GetDB(ctx, r.db).
		Where("document_id = ? AND fingerprint = ?", documentID, fingerprint).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *distributionRepository) SumByLineItem(ctx context.Context, documentID uuid.UUID) (map[uuid.UUID]DistributedTotals, error) {
	var rows []struct {
		LineItemID uuid.UUID
		Quantity   decimal.Decimal
		Amount     decimal.Decimal
	}
	err := GetDB(ctx, r.db).
		Model(&model.DistributionEntry{}).
		Select("line_item_id, COALESCE(SUM(quantity),0) AS quantity, COALESCE(SUM(amount),0) AS amount").
		Where("document_id = ?", documentID).
		Group("line_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]DistributedTotals, len(rows))
	for _, row := range rows {
		out[row.LineItemID] = DistributedTotals{
			LineItemID: row.LineItemID,
			Quantity:   row.Quantity,
			Amount:     row.Amount,
		}
	}
	return out, nil
}

func (r *distributionRepository) ListEntries(ctx context.Context, documentID uuid.UUID) ([]model.DistributionEntry, error) {
	var entries []model.DistributionEntry
	err := GetDB(ctx, r.db).
		Where("document_id = ?", documentID).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

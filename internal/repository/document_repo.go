package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stroydoc/upd-processor/internal/model"
)

// DocumentRepository persists UPD documents with their items and issues.
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	// FindByIDForUpdate locks the document row until the surrounding
	// transaction ends, serializing concurrent distribution requests
	// against the same document.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Document, error)
	// FindActiveByNaturalKey looks up a non-duplicate document with the
	// same natural key, locking matches so two concurrent uploads of the
	// same file cannot both pass the check.
	FindActiveByNaturalKey(ctx context.Context, number string, date time.Time, supplierINN string) (*model.Document, error)
	List(ctx context.Context, status model.DocumentStatus, page, limit int) ([]model.Document, int64, error)
	UpdateStatus(ctx context.Context, doc *model.Document) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	// Associations are loaded outside the locking clause; FOR UPDATE with
	// joins is not portable across postgres versions.
	if err := GetDB(ctx, r.db).
		Order("position asc").
		Find(&doc.Items, "document_id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindActiveByNaturalKey(ctx context.Context, number string, date time.Time, supplierINN string) (*model.Document, error) {
	var doc model.Document
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("number = ? AND date = ? AND supplier_inn = ? AND status <> ?",
			number, date, supplierINN, model.StatusDuplicate).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, status model.DocumentStatus, page, limit int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Document{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetch := db.Order("created_at desc").Offset(offset).Limit(limit)
	if status != "" {
		fetch = fetch.Where("status = ?", status)
	}
	if err := fetch.Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Model(doc).
		Select("status", "fully_distributed", "updated_at").
		Updates(map[string]interface{}{
			"status":            doc.Status,
			"fully_distributed": doc.FullyDistributed,
		}).Error
}

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Generator identifies the vendor software that produced a UPD XML file.
// Dialects differ in attribute naming and nesting, so extraction rules are
// selected per generator.
type Generator string

const (
	Generator1C      Generator = "1c"
	GeneratorSBIS    Generator = "sbis"
	GeneratorDiadoc  Generator = "diadoc"
	GeneratorAstral  Generator = "astral"
	GeneratorUnknown Generator = "unknown"
)

// Severity of a parsing issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DocumentStatus is the document lifecycle state.
//
// NEW -> DISTRIBUTED -> ARCHIVED, with DUPLICATE as a terminal state
// assigned directly by the identity check. Documents are never deleted.
type DocumentStatus string

const (
	StatusNew         DocumentStatus = "NEW"
	StatusDistributed DocumentStatus = "DISTRIBUTED"
	StatusArchived    DocumentStatus = "ARCHIVED"
	StatusDuplicate   DocumentStatus = "DUPLICATE"
)

// CanTransition reports whether the status may move to next.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusNew:
		return next == StatusDistributed || next == StatusArchived
	case StatusDistributed:
		return next == StatusArchived
	default:
		// ARCHIVED and DUPLICATE are terminal
		return false
	}
}

// Document is a parsed Universal Transfer Document (UPD).
//
// The triple (Number, Date, SupplierINN) is the natural key used for
// duplicate detection. After persistence the document is immutable except
// for status transitions and appended distribution records.
type Document struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`

	// The partial unique index excludes DUPLICATE rows, which deliberately
	// share the natural key with their original. Concurrent uploads of the
	// same new document race past the locking read; the index makes the
	// second insert fail so it can be reclassified.
	Number      string    `gorm:"type:varchar(64);not null;index:idx_upd_natural_key,unique,where:status <> 'DUPLICATE'" json:"number"`
	Date        time.Time `gorm:"not null;index:idx_upd_natural_key,unique" json:"date"`
	SupplierINN string    `gorm:"type:varchar(12);not null;index:idx_upd_natural_key,unique" json:"supplier_inn"`

	SupplierName string `gorm:"type:varchar(512)" json:"supplier_name"`
	BuyerName    string `gorm:"type:varchar(512)" json:"buyer_name,omitempty"`
	BuyerINN     string `gorm:"type:varchar(12)" json:"buyer_inn,omitempty"`

	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`
	VATAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"vat_amount"`
	AmountWithVAT decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount_with_vat"`

	Generator     Generator      `gorm:"type:varchar(16);not null;default:'unknown'" json:"generator"`
	FormatVersion string         `gorm:"type:varchar(32)" json:"format_version,omitempty"`
	Status        DocumentStatus `gorm:"type:varchar(16);not null;default:'NEW';index" json:"status"`

	// FullyDistributed is set once every line item is allocated in full.
	FullyDistributed bool `gorm:"not null;default:false" json:"fully_distributed"`

	// StoragePath is where the original uploaded bytes are retained.
	StoragePath      string `gorm:"type:varchar(512)" json:"storage_path,omitempty"`
	OriginalFilename string `gorm:"type:varchar(255)" json:"original_filename,omitempty"`

	Items  []LineItem     `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Issues []ParsingIssue `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"issues,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "upd_documents" }

// NaturalKey returns the duplicate-detection key.
func (d *Document) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", d.Number, d.Date.Format("2006-01-02"), d.SupplierINN)
}

// ItemByID returns the line item with the given ID, or nil.
func (d *Document) ItemByID(id uuid.UUID) *LineItem {
	for i := range d.Items {
		if d.Items[i].ID == id {
			return &d.Items[i]
		}
	}
	return nil
}

// LineItem is a single goods/services row of a UPD document.
type LineItem struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`

	Position int    `gorm:"not null" json:"position"`
	Name     string `gorm:"type:varchar(1024);not null" json:"name"`
	Unit     string `gorm:"type:varchar(64)" json:"unit"`

	Quantity     decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"unit_price"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`
	VATRate      string          `gorm:"type:varchar(16)" json:"vat_rate"`
	VATPercent   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"vat_percent"`
	VATAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"vat_amount"`
	TotalWithVAT decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_with_vat"`

	// Code is an optional supplier classification code (article, ОКПД2 etc).
	Code string `gorm:"type:varchar(64)" json:"code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (LineItem) TableName() string { return "upd_line_items" }

// ParsingIssue is a recorded, non-fatal anomaly from extraction or
// validation. Issues never block document creation; they are accumulated
// and surfaced to the caller in order.
type ParsingIssue struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`

	Position  int       `gorm:"not null" json:"-"`
	Severity  Severity  `gorm:"type:varchar(8);not null" json:"severity"`
	Element   string    `gorm:"type:varchar(128);not null" json:"element"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Generator Generator `gorm:"type:varchar(16)" json:"generator,omitempty"`
	RawValue  string    `gorm:"type:varchar(512)" json:"raw_value,omitempty"`
}

func (ParsingIssue) TableName() string { return "upd_parsing_issues" }

// NewIssue builds an issue without persistence identifiers; the repository
// assigns document ID and position on save.
func NewIssue(severity Severity, element, message string) ParsingIssue {
	return ParsingIssue{Severity: severity, Element: element, Message: message}
}

// WithRaw attaches the offending raw value.
func (i ParsingIssue) WithRaw(raw string) ParsingIssue {
	if len(raw) > 512 {
		raw = raw[:512]
	}
	i.RawValue = raw
	return i
}

// DistributionBatch groups the entries created by a single allocation
// request. Fingerprint is a SHA-256 over the canonical instruction list and
// is unique per document, which rejects identical re-submissions.
type DistributionBatch struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index:idx_batch_fingerprint,unique" json:"document_id"`
	Fingerprint string    `gorm:"type:varchar(64);not null;index:idx_batch_fingerprint,unique" json:"fingerprint"`

	Entries []DistributionEntry `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (DistributionBatch) TableName() string { return "upd_distribution_batches" }

// DistributionEntry allocates part of one line item to a cost object and
// optionally a material request. Entries are append-only; a reversal is a
// new entry with negated values, never an in-place mutation.
type DistributionEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID    uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	LineItemID uuid.UUID `gorm:"type:uuid;not null;index" json:"line_item_id"`

	CostObjectID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"cost_object_id"`
	MaterialRequestID *uuid.UUID `gorm:"type:uuid;index" json:"material_request_id,omitempty"`

	Quantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"quantity"`
	Amount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`

	CreatedAt time.Time `json:"created_at"`
}

func (DistributionEntry) TableName() string { return "upd_distribution_entries" }

// CostEntry is the downstream ledger record written for every distribution
// entry. Cost objects and material requests live in external systems; only
// their identifiers are referenced here.
type CostEntry struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CostObjectID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"cost_object_id"`
	MaterialRequestID *uuid.UUID `gorm:"type:uuid;index" json:"material_request_id,omitempty"`
	DocumentID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"document_id"`
	LineItemID        uuid.UUID  `gorm:"type:uuid;not null" json:"line_item_id"`

	Quantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"quantity"`
	Amount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`

	CreatedAt time.Time `json:"created_at"`
}

func (CostEntry) TableName() string { return "cost_entries" }

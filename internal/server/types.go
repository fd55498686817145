package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/service"
)

// UploadResponse is the structured summary returned after ingest.
type UploadResponse struct {
	ID            uuid.UUID            `json:"id"`
	Number        string               `json:"number"`
	Date          string               `json:"date"`
	SupplierName  string               `json:"supplier_name"`
	SupplierINN   string               `json:"supplier_inn"`
	Amount        decimal.Decimal      `json:"amount"`
	VATAmount     decimal.Decimal      `json:"vat_amount"`
	AmountWithVAT decimal.Decimal      `json:"amount_with_vat"`
	ItemCount     int                  `json:"item_count"`
	Status        model.DocumentStatus `json:"status"`
	StoragePath   string               `json:"storage_path"`
	Generator     model.Generator      `json:"generator"`
	Issues        []model.ParsingIssue `json:"issues"`
}

func newUploadResponse(r *service.UploadResult) UploadResponse {
	doc := r.Document
	return UploadResponse{
		ID:            doc.ID,
		Number:        doc.Number,
		Date:          formatDate(doc.Date),
		SupplierName:  doc.SupplierName,
		SupplierINN:   doc.SupplierINN,
		Amount:        doc.Amount,
		VATAmount:     doc.VATAmount,
		AmountWithVAT: doc.AmountWithVAT,
		ItemCount:     len(doc.Items),
		Status:        doc.Status,
		StoragePath:   r.StoragePath,
		Generator:     doc.Generator,
		Issues:        doc.Issues,
	}
}

// DocumentResponse is the full detail view.
type DocumentResponse struct {
	ID               uuid.UUID            `json:"id"`
	Number           string               `json:"number"`
	Date             string               `json:"date"`
	SupplierName     string               `json:"supplier_name"`
	SupplierINN      string               `json:"supplier_inn"`
	BuyerName        string               `json:"buyer_name,omitempty"`
	BuyerINN         string               `json:"buyer_inn,omitempty"`
	Amount           decimal.Decimal      `json:"amount"`
	VATAmount        decimal.Decimal      `json:"vat_amount"`
	AmountWithVAT    decimal.Decimal      `json:"amount_with_vat"`
	Generator        model.Generator      `json:"generator"`
	FormatVersion    string               `json:"format_version,omitempty"`
	Status           model.DocumentStatus `json:"status"`
	FullyDistributed bool                 `json:"fully_distributed"`
	Items            []model.LineItem     `json:"items"`
	Issues           []model.ParsingIssue `json:"issues"`
	CreatedAt        time.Time            `json:"created_at"`
}

func newDocumentResponse(doc *model.Document) DocumentResponse {
	return DocumentResponse{
		ID:               doc.ID,
		Number:           doc.Number,
		Date:             formatDate(doc.Date),
		SupplierName:     doc.SupplierName,
		SupplierINN:      doc.SupplierINN,
		BuyerName:        doc.BuyerName,
		BuyerINN:         doc.BuyerINN,
		Amount:           doc.Amount,
		VATAmount:        doc.VATAmount,
		AmountWithVAT:    doc.AmountWithVAT,
		Generator:        doc.Generator,
		FormatVersion:    doc.FormatVersion,
		Status:           doc.Status,
		FullyDistributed: doc.FullyDistributed,
		Items:            doc.Items,
		Issues:           doc.Issues,
		CreatedAt:        doc.CreatedAt,
	}
}

// DistributionRequest carries the ordered instruction list for one document.
type DistributionRequest struct {
	Instructions []InstructionInput `json:"instructions" binding:"required"`
}

// InstructionInput is a single allocation tuple. Amounts are strings to
// keep exact decimal semantics across the wire.
type InstructionInput struct {
	LineItemID        uuid.UUID  `json:"line_item_id" binding:"required"`
	CostObjectID      uuid.UUID  `json:"cost_object_id" binding:"required"`
	MaterialRequestID *uuid.UUID `json:"material_request_id,omitempty"`
	Quantity          string     `json:"distributed_quantity"`
	Amount            string     `json:"distributed_amount" binding:"required"`
}

// DistributionResponse reports the outcome of a committed allocation.
type DistributionResponse struct {
	Status             model.DocumentStatus `json:"status"`
	FullyDistributed   bool                 `json:"fully_distributed"`
	DistributedAmount  decimal.Decimal      `json:"distributed_amount"`
	EntriesCreated     int                  `json:"distributions_created"`
	CostEntriesCreated int                  `json:"cost_entries_created"`
}

// ListResponse wraps a document page.
type ListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	money "github.com/stroydoc/upd-processor/internal/decimal"
	"github.com/stroydoc/upd-processor/internal/logger"
	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/repository"
)

// Instruction allocates part of one line item to a cost object, optionally
// tied to a material request.
type Instruction struct {
	LineItemID        uuid.UUID
	CostObjectID      uuid.UUID
	MaterialRequestID *uuid.UUID
	Quantity          decimal.Decimal
	Amount            decimal.Decimal
}

// DistributionResult summarizes a committed allocation request.
type DistributionResult struct {
	Status             model.DocumentStatus
	FullyDistributed   bool
	DistributedAmount  decimal.Decimal
	EntriesCreated     int
	CostEntriesCreated int
}

// DistributionService reconciles allocation requests against a document's
// line items under the conservation invariants. Each request is
// all-or-nothing: on any validation failure nothing is committed.
type DistributionService interface {
	Distribute(ctx context.Context, documentID uuid.UUID, instructions []Instruction) (*DistributionResult, error)
	Entries(ctx context.Context, documentID uuid.UUID) ([]model.DistributionEntry, error)
}

type distributionService struct {
	docRepo   repository.DocumentRepository
	distRepo  repository.DistributionRepository
	txManager repository.TransactionManager
	log       zerolog.Logger
}

func NewDistributionService(
	docRepo repository.DocumentRepository,
	distRepo repository.DistributionRepository,
	txManager repository.TransactionManager,
) DistributionService {
	return &distributionService{
		docRepo:   docRepo,
		distRepo:  distRepo,
		txManager: txManager,
		log:       logger.WithComponent("distribution"),
	}
}

// Distribute validates and commits one allocation request. The document row
// is locked for the duration of the transaction, so concurrent requests
// against the same document serialize and the conservation check never
// runs against a stale read.
func (s *distributionService) Distribute(ctx context.Context, documentID uuid.UUID, instructions []Instruction) (*DistributionResult, error) {
	if len(instructions) == 0 {
		return nil, model.NewDistributionError(model.DistributionReasonEmptySet,
			"at least one instruction is required")
	}

	var result *DistributionResult
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docRepo.FindByIDForUpdate(txCtx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != model.StatusNew && doc.Status != model.StatusDistributed {
			return model.NewDistributionError(model.DistributionReasonBadStatus,
				fmt.Sprintf("document in status %s cannot receive distributions", doc.Status))
		}

		fingerprint := fingerprintInstructions(instructions)
		if existing, err := s.distRepo.FindBatchByFingerprint(txCtx, documentID, fingerprint); err != nil {
			return err
		} else if existing != nil {
			return model.NewDistributionError(model.DistributionReasonDuplicateSet,
				"identical instruction set was already applied")
		}

		committed, err := s.distRepo.SumByLineItem(txCtx, documentID)
		if err != nil {
			return err
		}

		if err := validateInstructions(doc, instructions, committed); err != nil {
			return err
		}

		batch := &model.DistributionBatch{
			DocumentID:  documentID,
			Fingerprint: fingerprint,
		}
		costEntries := make([]model.CostEntry, 0, len(instructions))
		total := decimal.Zero
		for _, ins := range instructions {
			batch.Entries = append(batch.Entries, model.DistributionEntry{
				DocumentID:        documentID,
				LineItemID:        ins.LineItemID,
				CostObjectID:      ins.CostObjectID,
				MaterialRequestID: ins.MaterialRequestID,
				Quantity:          ins.Quantity,
				Amount:            ins.Amount,
			})
			costEntries = append(costEntries, model.CostEntry{
				CostObjectID:      ins.CostObjectID,
				MaterialRequestID: ins.MaterialRequestID,
				DocumentID:        documentID,
				LineItemID:        ins.LineItemID,
				Quantity:          ins.Quantity,
				Amount:            ins.Amount,
			})
			total = total.Add(ins.Amount)
		}

		if err := s.distRepo.CreateBatch(txCtx, batch); err != nil {
			return err
		}
		if err := s.distRepo.CreateCostEntries(txCtx, costEntries); err != nil {
			return err
		}

		anyFull, allFull := allocationState(doc, instructions, committed)
		if anyFull && doc.Status == model.StatusNew {
			doc.Status = model.StatusDistributed
		}
		doc.FullyDistributed = allFull
		if err := s.docRepo.UpdateStatus(txCtx, doc); err != nil {
			return err
		}

		result = &DistributionResult{
			Status:             doc.Status,
			FullyDistributed:   doc.FullyDistributed,
			DistributedAmount:  total,
			EntriesCreated:     len(batch.Entries),
			CostEntriesCreated: len(costEntries),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", documentID.String()).
		Str("status", string(result.Status)).
		Str("amount", result.DistributedAmount.String()).
		Int("entries", result.EntriesCreated).
		Msg("distribution committed")
	return result, nil
}

func (s *distributionService) Entries(ctx context.Context, documentID uuid.UUID) ([]model.DistributionEntry, error) {
	return s.distRepo.ListEntries(ctx, documentID)
}

// validateInstructions enforces, in order: line-item ownership,
// conservation of quantity and amount, non-negative values.
func validateInstructions(doc *model.Document, instructions []Instruction, committed map[uuid.UUID]repository.DistributedTotals) error {
	newQty := make(map[uuid.UUID]decimal.Decimal)
	newAmt := make(map[uuid.UUID]decimal.Decimal)

	for _, ins := range instructions {
		item := doc.ItemByID(ins.LineItemID)
		if item == nil {
			return model.NewDistributionError(model.DistributionReasonUnknownItem,
				fmt.Sprintf("line item %s does not belong to document %s", ins.LineItemID, doc.ID))
		}
		if ins.Amount.IsNegative() || ins.Quantity.IsNegative() {
			return model.NewDistributionError(model.DistributionReasonNegativeValue,
				fmt.Sprintf("line item %s: negative allocation", ins.LineItemID))
		}
		newQty[ins.LineItemID] = newQty[ins.LineItemID].Add(ins.Quantity)
		newAmt[ins.LineItemID] = newAmt[ins.LineItemID].Add(ins.Amount)
	}

	for itemID, amt := range newAmt {
		item := doc.ItemByID(itemID)
		prior := committed[itemID]
		if !money.WithinTolerance(prior.Amount.Add(amt), item.Amount) {
			return model.NewDistributionError(model.DistributionReasonOverAllocation,
				fmt.Sprintf("line item %s: distributed amount %s would exceed line amount %s",
					itemID, prior.Amount.Add(amt), item.Amount))
		}
		if !money.WithinTolerance(prior.Quantity.Add(newQty[itemID]), item.Quantity) {
			return model.NewDistributionError(model.DistributionReasonOverAllocation,
				fmt.Sprintf("line item %s: distributed quantity %s would exceed line quantity %s",
					itemID, prior.Quantity.Add(newQty[itemID]), item.Quantity))
		}
	}
	return nil
}

// allocationState reports whether, after applying the instructions, any
// line item is fully allocated and whether all of them are.
func allocationState(doc *model.Document, instructions []Instruction, committed map[uuid.UUID]repository.DistributedTotals) (anyFull, allFull bool) {
	added := make(map[uuid.UUID]decimal.Decimal)
	for _, ins := range instructions {
		added[ins.LineItemID] = added[ins.LineItemID].Add(ins.Amount)
	}

	allFull = true
	for _, item := range doc.Items {
		total := committed[item.ID].Amount.Add(added[item.ID])
		if money.ApproxEqual(total, item.Amount) || total.GreaterThan(item.Amount) {
			anyFull = true
		} else {
			allFull = false
		}
	}
	return anyFull, allFull
}

// fingerprintInstructions produces a canonical SHA-256 of the instruction
// set. Ordering is normalized so the same set in a different order still
// counts as a duplicate.
func fingerprintInstructions(instructions []Instruction) string {
	lines := make([]string, 0, len(instructions))
	for _, ins := range instructions {
		mr := ""
		if ins.MaterialRequestID != nil {
			mr = ins.MaterialRequestID.String()
		}
		lines = append(lines, strings.Join([]string{
			ins.LineItemID.String(),
			ins.CostObjectID.String(),
			mr,
			ins.Quantity.String(),
			ins.Amount.String(),
		}, "|"))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stroydoc/upd-processor/internal/logger"
	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/parser/upd"
	"github.com/stroydoc/upd-processor/internal/repository"
)

// FileStore retains original uploaded bytes; satisfied by storage.Store.
type FileStore interface {
	Save(data []byte, originalFilename string) (string, error)
}

// UploadResult is the structured summary returned for a successful ingest,
// including the DUPLICATE classification, which is a success, not an error.
type UploadResult struct {
	Document    *model.Document
	StoragePath string
}

// UploadService runs the ingest pipeline: parse, validate, duplicate-check,
// persist, retain the original file.
type UploadService interface {
	Upload(ctx context.Context, data []byte, filename string) (*UploadResult, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	List(ctx context.Context, status model.DocumentStatus, page, limit int) ([]model.Document, int64, error)
	Archive(ctx context.Context, id uuid.UUID) (*model.Document, error)
}

type uploadService struct {
	parser    *upd.Parser
	docRepo   repository.DocumentRepository
	store     FileStore
	txManager repository.TransactionManager
	log       zerolog.Logger
}

func NewUploadService(
	parser *upd.Parser,
	docRepo repository.DocumentRepository,
	store FileStore,
	txManager repository.TransactionManager,
) UploadService {
	return &uploadService{
		parser:    parser,
		docRepo:   docRepo,
		store:     store,
		txManager: txManager,
		log:       logger.WithComponent("upload"),
	}
}

// Upload parses raw bytes and persists the result. On a fatal parse or
// security failure the original bytes are still retained for forensic
// review when storage succeeds, but no document record is created and the
// fatal error is returned.
func (s *uploadService) Upload(ctx context.Context, data []byte, filename string) (*UploadResult, error) {
	doc, parseErr := s.parser.Parse(data)

	storagePath, storeErr := s.store.Save(data, filename)
	if storeErr != nil {
		s.log.Error().Err(storeErr).Str("filename", filename).Msg("failed to retain original file")
	}

	if parseErr != nil {
		var secErr *model.SecurityError
		if errors.As(parseErr, &secErr) {
			s.log.Warn().Bool("security", true).Str("rule", secErr.Rule).
				Str("filename", filename).Str("storage_path", storagePath).
				Msg("upload rejected by security policy")
		} else {
			s.log.Info().Err(parseErr).Str("filename", filename).
				Str("storage_path", storagePath).Msg("upload rejected: structural parse failure")
		}
		return nil, parseErr
	}

	doc.StoragePath = storagePath
	doc.OriginalFilename = filename

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.docRepo.FindActiveByNaturalKey(txCtx, doc.Number, doc.Date, doc.SupplierINN)
		if err != nil {
			return err
		}
		if existing != nil {
			markDuplicate(doc)
		}
		return s.docRepo.Create(txCtx, doc)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) && doc.Status != model.StatusDuplicate {
		// A concurrent upload of the same new document committed between
		// our natural-key read and the insert; the partial unique index
		// rejected this row. Reclassify and persist it as the duplicate it
		// turned out to be. The failed insert aborted the first
		// transaction, so this needs a fresh one.
		markDuplicate(doc)
		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			return s.docRepo.Create(txCtx, doc)
		})
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", doc.ID.String()).
		Str("number", doc.Number).
		Str("supplier_inn", doc.SupplierINN).
		Str("generator", string(doc.Generator)).
		Str("status", string(doc.Status)).
		Int("items", len(doc.Items)).
		Int("issues", len(doc.Issues)).
		Msg("document ingested")

	return &UploadResult{Document: doc, StoragePath: storagePath}, nil
}

// markDuplicate turns the document into its terminal DUPLICATE form:
// retained for audit, excluded from distribution, no items.
func markDuplicate(doc *model.Document) {
	doc.Status = model.StatusDuplicate
	doc.Items = nil
	issue := model.NewIssue(model.SeverityInfo, "document",
		"document with the same number, date and supplier already exists")
	issue.Generator = doc.Generator
	issue.Position = len(doc.Issues)
	doc.Issues = append(doc.Issues, issue)
}

func (s *uploadService) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	return s.docRepo.FindByID(ctx, id)
}

func (s *uploadService) List(ctx context.Context, status model.DocumentStatus, page, limit int) ([]model.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.docRepo.List(ctx, status, page, limit)
}

// Archive moves a document to the terminal ARCHIVED state.
func (s *uploadService) Archive(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc *model.Document
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.docRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanTransition(model.StatusArchived) {
			return model.NewValidationError("status", doc.Status,
				"document cannot be archived from its current status")
		}
		doc.Status = model.StatusArchived
		return s.docRepo.UpdateStatus(txCtx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/repository"
)

// In-memory doubles for the repository layer. They model just enough of
// the persistence semantics for service behavior: natural-key lookup,
// status filtering and per-line-item aggregation.

type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*model.Document

	createErr error
	// blindNaturalKey makes FindActiveByNaturalKey see nothing, modelling a
	// concurrent transaction whose insert is not yet visible to the read.
	blindNaturalKey bool
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[uuid.UUID]*model.Document)}
}

func (r *fakeDocumentRepo) Create(_ context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	// The partial unique index on (number, date, supplier_inn) excludes
	// DUPLICATE rows.
	if doc.Status != model.StatusDuplicate {
		for _, existing := range r.docs {
			if existing.Status != model.StatusDuplicate &&
				existing.Number == doc.Number &&
				existing.Date.Equal(doc.Date) &&
				existing.SupplierINN == doc.SupplierINN {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	for i := range doc.Items {
		if doc.Items[i].ID == uuid.Nil {
			doc.Items[i].ID = uuid.New()
		}
		doc.Items[i].DocumentID = doc.ID
	}
	doc.CreatedAt = time.Now()
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeDocumentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocumentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeDocumentRepo) FindActiveByNaturalKey(_ context.Context, number string, date time.Time, supplierINN string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blindNaturalKey {
		return nil, nil
	}
	for _, doc := range r.docs {
		if doc.Status == model.StatusDuplicate {
			continue
		}
		if doc.Number == number && doc.Date.Equal(date) && doc.SupplierINN == supplierINN {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDocumentRepo) List(_ context.Context, status model.DocumentStatus, page, limit int) ([]model.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Document
	for _, doc := range r.docs {
		if status != "" && doc.Status != status {
			continue
		}
		out = append(out, *doc)
	}
	return out, int64(len(out)), nil
}

func (r *fakeDocumentRepo) UpdateStatus(_ context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = doc.Status
	stored.FullyDistributed = doc.FullyDistributed
	return nil
}

var _ repository.DocumentRepository = (*fakeDocumentRepo)(nil)

type fakeDistributionRepo struct {
	mu          sync.Mutex
	batches     []model.DistributionBatch
	costEntries []model.CostEntry
}

func newFakeDistributionRepo() *fakeDistributionRepo {
	return &fakeDistributionRepo{}
}

func (r *fakeDistributionRepo) CreateBatch(_ context.Context, batch *model.DistributionBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	for i := range batch.Entries {
		if batch.Entries[i].ID == uuid.Nil {
			batch.Entries[i].ID = uuid.New()
		}
		batch.Entries[i].BatchID = batch.ID
	}
	r.batches = append(r.batches, *batch)
	return nil
}

func (r *fakeDistributionRepo) CreateCostEntries(_ context.Context, entries []model.CostEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.costEntries = append(r.costEntries, entries...)
	return nil
}

func (r *fakeDistributionRepo) FindBatchByFingerprint(_ context.Context, documentID uuid.UUID, fingerprint string) (*model.DistributionBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.batches {
		if r.batches[i].DocumentID == documentID && r.batches[i].Fingerprint == fingerprint {
			copied := r.batches[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDistributionRepo) SumByLineItem(_ context.Context, documentID uuid.UUID) (map[uuid.UUID]repository.DistributedTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]repository.DistributedTotals)
	for _, batch := range r.batches {
		if batch.DocumentID != documentID {
			continue
		}
		for _, e := range batch.Entries {
			t := out[e.LineItemID]
			t.LineItemID = e.LineItemID
			t.Quantity = t.Quantity.Add(e.Quantity)
			t.Amount = t.Amount.Add(e.Amount)
			out[e.LineItemID] = t
		}
	}
	return out, nil
}

func (r *fakeDistributionRepo) ListEntries(_ context.Context, documentID uuid.UUID) ([]model.DistributionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DistributionEntry
	for _, batch := range r.batches {
		if batch.DocumentID != documentID {
			continue
		}
		out = append(out, batch.Entries...)
	}
	return out, nil
}

var _ repository.DistributionRepository = (*fakeDistributionRepo)(nil)

// fakeTxManager runs the function directly; atomicity is the real
// manager's concern, the services only need the callback contract.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

var _ repository.TransactionManager = fakeTxManager{}

type fakeFileStore struct {
	saved   int
	failing bool
}

func (s *fakeFileStore) Save(_ []byte, originalFilename string) (string, error) {
	if s.failing {
		return "", errors.New("disk full")
	}
	s.saved++
	return "2026/09/01/" + originalFilename, nil
}

package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/service"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedDocument creates a NEW document with two line items: 10 units for
// 120.00 and 3 units for 300.00.
func seedDocument(t *testing.T, repo *fakeDocumentRepo) *model.Document {
	t.Helper()
	doc := &model.Document{
		Number:      "УПД-12",
		SupplierINN: "7701234567",
		Status:      model.StatusNew,
		Items: []model.LineItem{
			{Position: 1, Name: "Цемент М500", Quantity: d("10"), Amount: d("120.00")},
			{Position: 2, Name: "Песок", Quantity: d("3"), Amount: d("300.00")},
		},
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	return doc
}

func newDistributionFixture(t *testing.T) (service.DistributionService, *fakeDocumentRepo, *fakeDistributionRepo, *model.Document) {
	t.Helper()
	docRepo := newFakeDocumentRepo()
	distRepo := newFakeDistributionRepo()
	svc := service.NewDistributionService(docRepo, distRepo, fakeTxManager{})
	doc := seedDocument(t, docRepo)
	return svc, docRepo, distRepo, doc
}

func instruction(itemID uuid.UUID, qty, amount string) service.Instruction {
	return service.Instruction{
		LineItemID:   itemID,
		CostObjectID: uuid.New(),
		Quantity:     d(qty),
		Amount:       d(amount),
	}
}

func TestDistributionService_PartialThenFull(t *testing.T) {
	svc, docRepo, distRepo, doc := newDistributionFixture(t)
	ctx := context.Background()
	item := doc.Items[0]

	// 80 of 120: nothing is fully allocated yet, status stays NEW.
	result, err := svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(item.ID, "6", "80.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, result.Status)
	assert.False(t, result.FullyDistributed)
	assert.Equal(t, 1, result.EntriesCreated)
	assert.Equal(t, 1, result.CostEntriesCreated)
	assert.True(t, result.DistributedAmount.Equal(d("80.00")))

	// The remaining 40 completes the line: the document becomes
	// DISTRIBUTED, but the second line is still untouched.
	result, err = svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(item.ID, "4", "40.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDistributed, result.Status)
	assert.False(t, result.FullyDistributed)

	stored, err := docRepo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDistributed, stored.Status)

	// Completing the second line sets the document fully distributed.
	result, err = svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(doc.Items[1].ID, "3", "300.00"),
	})
	require.NoError(t, err)
	assert.True(t, result.FullyDistributed)

	entries, err := svc.Entries(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Len(t, distRepo.costEntries, 3)
}

func TestDistributionService_OverAllocationRejected(t *testing.T) {
	svc, _, distRepo, doc := newDistributionFixture(t)
	ctx := context.Background()
	item := doc.Items[0]

	_, err := svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(item.ID, "10", "120.00"),
	})
	require.NoError(t, err)

	// Two kopecks over the line amount is past tolerance.
	_, err = svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(item.ID, "0", "0.02"),
	})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonOverAllocation, distErr.Reason)

	// All-or-nothing: the rejected request committed nothing.
	entries, err := svc.Entries(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, distRepo.costEntries, 1)
}

func TestDistributionService_FullLineAcceptsNothingMore(t *testing.T) {
	svc, _, _, doc := newDistributionFixture(t)
	ctx := context.Background()
	item := doc.Items[0]

	_, err := svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(item.ID, "6", "80.00"),
	})
	require.NoError(t, err)
	_, err = svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(item.ID, "4", "40.00"),
	})
	require.NoError(t, err)

	// 80 + 40 fills the 120.00 line exactly; one more kopeck is over.
	_, err = svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(item.ID, "0", "0.01"),
	})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonOverAllocation, distErr.Reason)
}

func TestDistributionService_QuantityConservation(t *testing.T) {
	svc, _, _, doc := newDistributionFixture(t)

	// Amount is fine but quantity exceeds the line.
	_, err := svc.Distribute(context.Background(), doc.ID, []service.Instruction{
		instruction(doc.Items[0].ID, "11", "50.00"),
	})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonOverAllocation, distErr.Reason)
}

func TestDistributionService_AggregatedConservation(t *testing.T) {
	svc, _, _, doc := newDistributionFixture(t)
	item := doc.Items[0]

	// Each instruction alone fits, the sum does not.
	_, err := svc.Distribute(context.Background(), doc.ID, []service.Instruction{
		instruction(item.ID, "5", "70.00"),
		instruction(item.ID, "5", "70.00"),
	})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonOverAllocation, distErr.Reason)
}

func TestDistributionService_DuplicateInstructionSet(t *testing.T) {
	svc, _, _, doc := newDistributionFixture(t)
	ctx := context.Background()

	first := instruction(doc.Items[0].ID, "2", "24.00")
	second := instruction(doc.Items[1].ID, "1", "100.00")

	_, err := svc.Distribute(ctx, doc.ID, []service.Instruction{first, second})
	require.NoError(t, err)

	// The identical set in reverse order is still the same set.
	_, err = svc.Distribute(ctx, doc.ID, []service.Instruction{second, first})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonDuplicateSet, distErr.Reason)

	// A different quantity is a different set and goes through.
	_, err = svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(doc.Items[0].ID, "2", "24.00"),
	})
	require.NoError(t, err)
}

func TestDistributionService_UnknownLineItem(t *testing.T) {
	svc, _, _, doc := newDistributionFixture(t)

	_, err := svc.Distribute(context.Background(), doc.ID, []service.Instruction{
		instruction(uuid.New(), "1", "10.00"),
	})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonUnknownItem, distErr.Reason)
}

func TestDistributionService_NegativeValues(t *testing.T) {
	svc, _, _, doc := newDistributionFixture(t)

	_, err := svc.Distribute(context.Background(), doc.ID, []service.Instruction{
		instruction(doc.Items[0].ID, "1", "-10.00"),
	})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonNegativeValue, distErr.Reason)
}

func TestDistributionService_EmptySet(t *testing.T) {
	svc, _, _, doc := newDistributionFixture(t)

	_, err := svc.Distribute(context.Background(), doc.ID, nil)
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonEmptySet, distErr.Reason)
}

func TestDistributionService_StatusGate(t *testing.T) {
	svc, docRepo, _, doc := newDistributionFixture(t)
	ctx := context.Background()

	doc.Status = model.StatusArchived
	require.NoError(t, docRepo.UpdateStatus(ctx, doc))

	_, err := svc.Distribute(ctx, doc.ID, []service.Instruction{
		instruction(doc.Items[0].ID, "1", "12.00"),
	})
	require.Error(t, err)

	var distErr *model.DistributionError
	require.ErrorAs(t, err, &distErr)
	assert.Equal(t, model.DistributionReasonBadStatus, distErr.Reason)
}

func TestDistributionService_UnknownDocument(t *testing.T) {
	svc, _, _, _ := newDistributionFixture(t)

	_, err := svc.Distribute(context.Background(), uuid.New(), []service.Instruction{
		instruction(uuid.New(), "1", "10.00"),
	})
	require.Error(t, err)
}

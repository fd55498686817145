package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/parser/upd"
	"github.com/stroydoc/upd-processor/internal/service"
)

const sampleUPD = `<?xml version="1.0" encoding="UTF-8"?>
<Файл ИдФайл="ON_NSCHFDOPPR_0001" ВерсФорм="5.01" ВерсПрог="1С:Предприятие 8.3">
  <Документ>
    <СвСчФакт НомерСчФ="УПД-77" ДатаСчФ="10.04.2026">
      <СвПрод><ИдСв><СвЮЛУч НаимОрг="ООО СтройПоставка" ИННЮЛ="7701234567"/></ИдСв></СвПрод>
      <СвПокуп><ИдСв><СвЮЛУч НаимОрг="ООО ГлавСтрой" ИННЮЛ="7812345678"/></ИдСв></СвПокуп>
    </СвСчФакт>
    <ТаблСчФакт>
      <СведТов НаимТов="Цемент М500" КолТов="100" ЦенаТов="350.00" СтТовБезНДС="35000.00" НалСт="20%" СтТовУчНал="42000.00">
        <СумНал><СумНал>7000.00</СумНал></СумНал>
      </СведТов>
      <ВсегоОпл СтТовБезНДСВсего="35000.00" СтТовУчНалВсего="42000.00">
        <СумНалВсего><СумНал>7000.00</СумНал></СумНалВсего>
      </ВсегоОпл>
    </ТаблСчФакт>
  </Документ>
</Файл>`

func newUploadFixture() (service.UploadService, *fakeDocumentRepo, *fakeFileStore) {
	docRepo := newFakeDocumentRepo()
	store := &fakeFileStore{}
	svc := service.NewUploadService(upd.NewParser(), docRepo, store, fakeTxManager{})
	return svc, docRepo, store
}

func TestUploadService_Upload(t *testing.T) {
	svc, docRepo, store := newUploadFixture()

	result, err := svc.Upload(context.Background(), []byte(sampleUPD), "upd-77.xml")
	require.NoError(t, err)

	assert.Equal(t, model.StatusNew, result.Document.Status)
	assert.Equal(t, "УПД-77", result.Document.Number)
	assert.Len(t, result.Document.Items, 1)
	assert.Equal(t, "2026/09/01/upd-77.xml", result.StoragePath)
	assert.Equal(t, 1, store.saved)

	stored, err := docRepo.FindByID(context.Background(), result.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, stored.Status)
}

func TestUploadService_DuplicateUpload(t *testing.T) {
	svc, _, _ := newUploadFixture()
	ctx := context.Background()

	first, err := svc.Upload(ctx, []byte(sampleUPD), "upd-77.xml")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, first.Document.Status)

	// Same number, date and supplier INN: retained but terminal DUPLICATE,
	// carrying no line items.
	second, err := svc.Upload(ctx, []byte(sampleUPD), "upd-77-again.xml")
	require.NoError(t, err, "a duplicate is a classification, not a failure")

	assert.Equal(t, model.StatusDuplicate, second.Document.Status)
	assert.Empty(t, second.Document.Items)
	assert.NotEqual(t, first.Document.ID, second.Document.ID)

	last := second.Document.Issues[len(second.Document.Issues)-1]
	assert.Equal(t, model.SeverityInfo, last.Severity)
	assert.Equal(t, "document", last.Element)

	// A third upload is checked against the original, not the duplicate.
	third, err := svc.Upload(ctx, []byte(sampleUPD), "upd-77-more.xml")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDuplicate, third.Document.Status)
}

func TestUploadService_ConcurrentSameDocumentInsert(t *testing.T) {
	svc, docRepo, _ := newUploadFixture()
	ctx := context.Background()

	first, err := svc.Upload(ctx, []byte(sampleUPD), "a.xml")
	require.NoError(t, err)
	require.Equal(t, model.StatusNew, first.Document.Status)

	// A concurrent transaction can commit the same document between our
	// natural-key read and the insert. The unique index rejects the second
	// row and the upload is reclassified, not failed.
	docRepo.blindNaturalKey = true
	second, err := svc.Upload(ctx, []byte(sampleUPD), "b.xml")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDuplicate, second.Document.Status)
	assert.Empty(t, second.Document.Items)

	last := second.Document.Issues[len(second.Document.Issues)-1]
	assert.Equal(t, model.SeverityInfo, last.Severity)
	assert.Equal(t, "document", last.Element)
}

func TestUploadService_SecurityRejection(t *testing.T) {
	svc, docRepo, store := newUploadFixture()

	payload := `<?xml version="1.0"?>
<!DOCTYPE r [<!ENTITY x SYSTEM "file:///etc/passwd">]>
<r>&x;</r>`
	_, err := svc.Upload(context.Background(), []byte(payload), "evil.xml")
	require.Error(t, err)

	var secErr *model.SecurityError
	require.ErrorAs(t, err, &secErr)

	// No record is created but the original bytes are retained for review.
	docs, _, _ := docRepo.List(context.Background(), "", 1, 50)
	assert.Empty(t, docs)
	assert.Equal(t, 1, store.saved)
}

func TestUploadService_StructuralRejection(t *testing.T) {
	svc, docRepo, _ := newUploadFixture()

	_, err := svc.Upload(context.Background(), []byte("<Файл><Сломано</Файл>"), "broken.xml")
	require.Error(t, err)

	docs, _, _ := docRepo.List(context.Background(), "", 1, 50)
	assert.Empty(t, docs)
}

func TestUploadService_StoreFailureDoesNotBlockIngest(t *testing.T) {
	docRepo := newFakeDocumentRepo()
	store := &fakeFileStore{failing: true}
	svc := service.NewUploadService(upd.NewParser(), docRepo, store, fakeTxManager{})

	result, err := svc.Upload(context.Background(), []byte(sampleUPD), "upd-77.xml")
	require.NoError(t, err)
	assert.Empty(t, result.StoragePath)
	assert.Equal(t, model.StatusNew, result.Document.Status)
}

func TestUploadService_Archive(t *testing.T) {
	svc, docRepo, _ := newUploadFixture()
	ctx := context.Background()

	uploaded, err := svc.Upload(ctx, []byte(sampleUPD), "upd-77.xml")
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, uploaded.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, archived.Status)

	stored, err := docRepo.FindByID(ctx, uploaded.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, stored.Status)

	// ARCHIVED is terminal.
	_, err = svc.Archive(ctx, uploaded.Document.ID)
	require.Error(t, err)
	var valErr *model.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestUploadService_ArchiveDuplicateRejected(t *testing.T) {
	svc, _, _ := newUploadFixture()
	ctx := context.Background()

	_, err := svc.Upload(ctx, []byte(sampleUPD), "a.xml")
	require.NoError(t, err)
	dup, err := svc.Upload(ctx, []byte(sampleUPD), "b.xml")
	require.NoError(t, err)
	require.Equal(t, model.StatusDuplicate, dup.Document.Status)

	_, err = svc.Archive(ctx, dup.Document.ID)
	require.Error(t, err)
	var valErr *model.ValidationError
	require.ErrorAs(t, err, &valErr)
}

package services

import (
	"bytes"
	"testing"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDocumentsOverdueIsDerived(t *testing.T) {
	e := newTestEnv(t)
	sarah, dave, project := sarahAndDave(t, e)
	e.svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	amount := 1200.0
	past := "2024-02-01"
	future := "2024-04-01"

	late, err := e.svc.CreateDocument(sarah.ctx, sarah.user, project.ID, models.CreateDocumentRequest{
		Title: "Invoice #1", Type: models.DocumentInvoice, Link: "https://docs.example.com/1",
		Amount: &amount, Status: models.DocumentPending, DueDate: &past,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentOverdue, late.EffectiveStatus)
	assert.Equal(t, models.DocumentPending, late.Status)

	_, err = e.svc.CreateDocument(sarah.ctx, sarah.user, project.ID, models.CreateDocumentRequest{
		Title: "Invoice #2", Type: models.DocumentInvoice, Link: "https://docs.example.com/2",
		Amount: &amount, Status: models.DocumentPending, DueDate: &future,
	})
	require.NoError(t, err)

	contract, err := e.svc.CreateDocument(sarah.ctx, sarah.user, project.ID, models.CreateDocumentRequest{
		Title: "Contract", Type: models.DocumentContract, Link: "https://docs.example.com/c",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentDraft, contract.Status)

	list, err := e.svc.ListDocuments(dave.ctx, dave.user, project.ID)
	require.NoError(t, err)
	require.Len(t, list.Documents, 3)
	assert.Equal(t, 1200.0, list.Totals.Overdue)
	assert.Equal(t, 1200.0, list.Totals.Pending)
	assert.Equal(t, 3, list.Totals.Count)

	stored, err := e.db.GetDocument(sarah.ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentPending, stored.Status, "stored status is not rewritten")

	paid := models.DocumentPaid
	updated, err := e.svc.UpdateDocument(sarah.ctx, sarah.user, late.ID, models.UpdateDocumentRequest{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentPaid, updated.EffectiveStatus)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, past, updated.DueDate.Format(models.DueDateLayout))
}

func TestDocumentsAreFreelancerOnly(t *testing.T) {
	e := newTestEnv(t)
	sarah, dave, project := sarahAndDave(t, e)

	_, err := e.svc.CreateDocument(dave.ctx, dave.user, project.ID, models.CreateDocumentRequest{
		Title: "Fake", Type: models.DocumentInvoice, Link: "https://x.test",
	})
	assert.ErrorIs(t, err, apperrors.ErrFreelancerOnly)

	bad := "03/01/2024"
	_, err = e.svc.CreateDocument(sarah.ctx, sarah.user, project.ID, models.CreateDocumentRequest{
		Title: "Bad date", Type: models.DocumentInvoice, Link: "https://x.test", DueDate: &bad,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	doc, err := e.svc.CreateDocument(sarah.ctx, sarah.user, project.ID, models.CreateDocumentRequest{
		Title: "Proposal", Type: models.DocumentProposal, Link: "https://x.test/p",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, e.svc.DeleteDocument(dave.ctx, dave.user, doc.ID), apperrors.ErrFreelancerOnly)
	require.NoError(t, e.svc.DeleteDocument(sarah.ctx, sarah.user, doc.ID))
}

func TestExportDocuments(t *testing.T) {
	e := newTestEnv(t)
	sarah, dave, project := sarahAndDave(t, e)

	amount := 250.5
	_, err := e.svc.CreateDocument(sarah.ctx, sarah.user, project.ID, models.CreateDocumentRequest{
		Title: "Invoice #7", Type: models.DocumentInvoice, Link: "https://docs.example.com/7",
		Amount: &amount, Status: models.DocumentPaid,
	})
	require.NoError(t, err)

	data, err := e.svc.ExportDocuments(dave.ctx, dave.user, project.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Invoice #7", title)
	status, err := f.GetCellValue("Sheet1", "C2")
	require.NoError(t, err)
	assert.Equal(t, "paid", status)
}

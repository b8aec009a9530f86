package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/logger"
	"clientbridge/pkg/models"

	"github.com/xuri/excelize/v2"
)

// DocumentList is a project's documents with their displayed statuses and totals
type DocumentList struct {
	Documents []models.Document     `json:"documents"`
	Totals    models.DocumentTotals `json:"totals"`
}

func (s *Service) ListDocuments(ctx context.Context, actor *models.User, projectID string) (*DocumentList, error) {
	if _, err := s.requireMember(ctx, actor, projectID); err != nil {
		return nil, err
	}
	docs, err := s.db.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	totals := models.SummarizeDocuments(docs, s.now())
	return &DocumentList{Documents: docs, Totals: totals}, nil
}

func (s *Service) CreateDocument(ctx context.Context, actor *models.User, projectID string, req models.CreateDocumentRequest) (*models.Document, error) {
	if _, err := s.requireOwner(ctx, actor, projectID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	status := req.Status
	if status == "" {
		status = models.DocumentDraft
	}

	doc := &models.Document{
		ProjectID: projectID,
		Title:     title,
		Type:      req.Type,
		Link:      strings.TrimSpace(req.Link),
		Amount:    req.Amount,
		Status:    status,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := models.ParseDueDate(*req.DueDate)
		if err != nil {
			return nil, apperrors.Validation("due_date must be YYYY-MM-DD")
		}
		doc.DueDate = due
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	doc.EffectiveStatus = models.EffectiveStatus(doc.Status, doc.DueDate, s.now())

	s.Notify(ctx, actor, DocumentCreated(doc))
	return doc, nil
}

func (s *Service) UpdateDocument(ctx context.Context, actor *models.User, id string, req models.UpdateDocumentRequest) (*models.Document, error) {
	doc, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, actor, doc.ProjectID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperrors.Validation("title cannot be empty")
		}
		doc.Title = title
	}
	if req.Type != nil {
		doc.Type = *req.Type
	}
	if req.Link != nil {
		doc.Link = strings.TrimSpace(*req.Link)
	}
	if req.Amount != nil {
		doc.Amount = req.Amount
	}
	if req.Status != nil {
		doc.Status = *req.Status
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			doc.DueDate = nil
		} else {
			due, err := models.ParseDueDate(*req.DueDate)
			if err != nil {
				return nil, apperrors.Validation("due_date must be YYYY-MM-DD")
			}
			doc.DueDate = due
		}
	}

	if err := s.db.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	updated, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	updated.EffectiveStatus = models.EffectiveStatus(updated.Status, updated.DueDate, s.now())
	return updated, nil
}

func (s *Service) DeleteDocument(ctx context.Context, actor *models.User, id string) error {
	doc, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.requireOwner(ctx, actor, doc.ProjectID); err != nil {
		return err
	}
	return s.db.DeleteDocument(ctx, id)
}

// ExportDocuments renders the project's documents as an XLSX workbook
func (s *Service) ExportDocuments(ctx context.Context, actor *models.User, projectID string) ([]byte, error) {
	list, err := s.ListDocuments(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.FromContext(ctx).Warn("failed to close workbook", "error", err)
		}
	}()

	sheet := "Sheet1"
	headers := []string{"Title", "Type", "Status", "Amount", "Due date", "Link", "Created"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, d := range list.Documents {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), d.Title)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), string(d.Type))
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), string(d.EffectiveStatus))
		if d.Amount != nil {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), *d.Amount)
		}
		if d.DueDate != nil {
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), d.DueDate.Format(models.DueDateLayout))
		}
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), d.Link)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), d.CreatedAt.Format(models.DueDateLayout))
	}

	// 汇总行
	summary := len(list.Documents) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summary), "Paid")
	f.SetCellValue(sheet, fmt.Sprintf("D%d", summary), list.Totals.Paid)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summary+1), "Pending")
	f.SetCellValue(sheet, fmt.Sprintf("D%d", summary+1), list.Totals.Pending)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summary+2), "Overdue")
	f.SetCellValue(sheet, fmt.Sprintf("D%d", summary+2), list.Totals.Overdue)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, apperrors.Backend(err, "Failed to build spreadsheet")
	}
	return buf.Bytes(), nil
}

package models

import "time"

type DocumentType string

const (
	DocumentInvoice  DocumentType = "invoice"
	DocumentContract DocumentType = "contract"
	DocumentProposal DocumentType = "proposal"
)

type DocumentStatus string

const (
	DocumentDraft   DocumentStatus = "draft"
	DocumentPending DocumentStatus = "pending"
	DocumentPaid    DocumentStatus = "paid"
	DocumentOverdue DocumentStatus = "overdue"
)

// DueDateLayout is how due dates are stored and exchanged
const DueDateLayout = "2006-01-02"

// Document is an invoice, contract or proposal link attached to a project.
// Status is the persisted value; EffectiveStatus is what gets displayed.
type Document struct {
	ID              string         `json:"id" db:"id"`
	ProjectID       string         `json:"project_id" db:"project_id"`
	Title           string         `json:"title" db:"title"`
	Type            DocumentType   `json:"type" db:"type"`
	Link            string         `json:"link" db:"link"`
	Amount          *float64       `json:"amount,omitempty" db:"amount"`
	Status          DocumentStatus `json:"status" db:"status"`
	DueDate         *time.Time     `json:"due_date,omitempty" db:"due_date"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	EffectiveStatus DocumentStatus `json:"effective_status"`
}

// EffectiveStatus derives the displayed status. A pending document past its
// due date shows as overdue; the stored status is left untouched.
func EffectiveStatus(status DocumentStatus, due *time.Time, now time.Time) DocumentStatus {
	if status == DocumentPending && due != nil && now.After(*due) {
		return DocumentOverdue
	}
	return status
}

// DocumentTotals sums amounts by displayed status
type DocumentTotals struct {
	Paid    float64 `json:"paid"`
	Pending float64 `json:"pending"`
	Overdue float64 `json:"overdue"`
	Count   int     `json:"count"`
}

// SummarizeDocuments fills EffectiveStatus on every document and returns the totals.
func SummarizeDocuments(docs []Document, now time.Time) DocumentTotals {
	var t DocumentTotals
	for i := range docs {
		d := &docs[i]
		d.EffectiveStatus = EffectiveStatus(d.Status, d.DueDate, now)
		t.Count++
		if d.Amount == nil {
			continue
		}
		switch d.EffectiveStatus {
		case DocumentPaid:
			t.Paid += *d.Amount
		case DocumentPending:
			t.Pending += *d.Amount
		case DocumentOverdue:
			t.Overdue += *d.Amount
		}
	}
	return t
}

// CreateDocumentRequest represents the request payload for document creation
type CreateDocumentRequest struct {
	Title   string         `json:"title" validate:"required,max=300"`
	Type    DocumentType   `json:"type" validate:"required,oneof=invoice contract proposal"`
	Link    string         `json:"link" validate:"required,url"`
	Amount  *float64       `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Status  DocumentStatus `json:"status" validate:"omitempty,oneof=draft pending paid overdue"`
	DueDate *string        `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateDocumentRequest represents the request payload for document edits
type UpdateDocumentRequest struct {
	Title   *string         `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Type    *DocumentType   `json:"type,omitempty" validate:"omitempty,oneof=invoice contract proposal"`
	Link    *string         `json:"link,omitempty" validate:"omitempty,url"`
	Amount  *float64        `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Status  *DocumentStatus `json:"status,omitempty" validate:"omitempty,oneof=draft pending paid overdue"`
	DueDate *string         `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ParseDueDate parses a YYYY-MM-DD date as midnight UTC
func ParseDueDate(s string) (*time.Time, error) {
	t, err := time.Parse(DueDateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

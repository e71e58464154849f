package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Pending   TransactionStatus = "pending"
	Completed TransactionStatus = "completed"

	DefaultPaymentMethod = "cash"
)

type (
	TransactionType   string
	TransactionStatus string

	// Transaction is a single ledger record owned by one user.
	Transaction struct {
		ID            string
		OwnerID       string
		Type          TransactionType
		Amount        Money
		Currency      string
		Category      string
		Date          time.Time
		PaymentMethod string
		Notes         string
		Status        TransactionStatus
		AttachmentRef *string
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// NewTransaction carries the caller-supplied fields of a create request.
	// Zero values mean "not supplied" and are replaced by defaults.
	NewTransaction struct {
		Type          TransactionType
		Amount        Money
		Currency      string
		Category      string
		Date          time.Time
		PaymentMethod string
		Notes         string
	}

	// TransactionPatch is a partial update; nil fields are left unchanged.
	TransactionPatch struct {
		Type          *TransactionType
		Amount        *Money
		Currency      *string
		Category      *string
		Date          *time.Time
		PaymentMethod *string
		Notes         *string
		Status        *TransactionStatus
	}

	// Upload is an attachment received with a create or update request.
	Upload struct {
		Filename    string
		ContentType string
		Size        int64
		Data        []byte
	}
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Valid reports whether s is a usable status token. The set is open:
// pending and completed are the known values but any non-blank token is kept.
func (s TransactionStatus) Valid() bool {
	return strings.TrimSpace(string(s)) != ""
}

func (t Transaction) HasAttachment() bool {
	return t.AttachmentRef != nil && *t.AttachmentRef != ""
}

// Validate checks the required fields of a create request.
func (n NewTransaction) Validate() error {
	if n.Type == "" || n.Amount.IsZero() || strings.TrimSpace(n.Category) == "" {
		return ErrMissingRequired
	}
	if !n.Type.Valid() {
		return NewValidationError("type", "must be income or expense")
	}
	if err := n.Amount.Validate(); err != nil {
		return err
	}
	if len(n.Category) > 100 {
		return NewValidationError("category", "too long (max 100 characters)")
	}
	if len(n.Notes) > 1000 {
		return NewValidationError("notes", "too long (max 1000 characters)")
	}
	return nil
}

// Build turns the request into a record, filling defaults.
func (n NewTransaction) Build(id, ownerID, defaultCurrency string, now time.Time) Transaction {
	t := Transaction{
		ID:            id,
		OwnerID:       ownerID,
		Type:          n.Type,
		Amount:        n.Amount,
		Currency:      strings.ToUpper(strings.TrimSpace(n.Currency)),
		Category:      strings.TrimSpace(n.Category),
		Date:          n.Date,
		PaymentMethod: strings.TrimSpace(n.PaymentMethod),
		Notes:         n.Notes,
		Status:        Completed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if t.Currency == "" {
		t.Currency = defaultCurrency
	}
	if t.Date.IsZero() {
		t.Date = now
	}
	if t.PaymentMethod == "" {
		t.PaymentMethod = DefaultPaymentMethod
	}
	return t
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.Currency == nil && p.Category == nil &&
		p.Date == nil && p.PaymentMethod == nil && p.Notes == nil && p.Status == nil
}

func (p TransactionPatch) Validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return NewValidationError("type", "must be income or expense")
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return NewValidationError("category", "cannot be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return NewValidationError("status", "cannot be empty")
	}
	if p.Notes != nil && len(*p.Notes) > 1000 {
		return NewValidationError("notes", "too long (max 1000 characters)")
	}
	return nil
}

// Apply returns t with the supplied fields replaced.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Currency != nil && strings.TrimSpace(*p.Currency) != "" {
		t.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Date != nil && !p.Date.IsZero() {
		t.Date = *p.Date
	}
	if p.PaymentMethod != nil && strings.TrimSpace(*p.PaymentMethod) != "" {
		t.PaymentMethod = strings.TrimSpace(*p.PaymentMethod)
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Status != nil {
		t.Status = TransactionStatus(strings.TrimSpace(string(*p.Status)))
	}
	return t
}

package core

import (
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Filter narrows a transaction listing. Empty fields match everything.
type Filter struct {
	Type     TransactionType
	Status   TransactionStatus
	Category string
}

func (f Filter) Validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return NewValidationError("type", "must be income or expense")
	}
	return nil
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// ParsePage reads page/limit query values. Blank values take the defaults,
// anything else must be a positive integer. Size is clamped to MaxPageSize.
func ParsePage(number, size string) (Page, error) {
	p := Page{Number: 1, Size: DefaultPageSize}
	if s := strings.TrimSpace(number); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Page{}, NewValidationError("page", "must be a positive integer")
		}
		p.Number = n
	}
	if s := strings.TrimSpace(size); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Page{}, NewValidationError("limit", "must be a positive integer")
		}
		p.Size = min(n, MaxPageSize)
	}
	return p, nil
}

// TransactionPage is one page of a listing plus the total match count.
type TransactionPage struct {
	Transactions []Transaction
	Page         Page
	TotalItems   int64
}

func (tp TransactionPage) TotalPages() int64 {
	if tp.Page.Size <= 0 {
		return 0
	}
	size := int64(tp.Page.Size)
	return (tp.TotalItems + size - 1) / size
}

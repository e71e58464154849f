package http

import (
	"time"

	"moneytracker/internal/core"
)

// transactionDTO is the wire form of a transaction.
type transactionDTO struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Amount        core.Money `json:"amount"`
	Currency      string     `json:"currency"`
	Category      string     `json:"category"`
	Date          time.Time  `json:"date"`
	PaymentMethod string     `json:"paymentMethod"`
	Notes         string     `json:"notes"`
	Status        string     `json:"status"`
	Attachment    *string    `json:"attachment"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	dto := transactionDTO{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Currency:      t.Currency,
		Category:      t.Category,
		Date:          t.Date,
		PaymentMethod: t.PaymentMethod,
		Notes:         t.Notes,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if t.HasAttachment() {
		ref := *t.AttachmentRef
		dto.Attachment = &ref
	}
	return dto
}

type paginationDTO struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int64 `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

type transactionListDTO struct {
	Transactions []transactionDTO `json:"transactions"`
	Pagination   paginationDTO    `json:"pagination"`
}

func toTransactionListDTO(page core.TransactionPage) transactionListDTO {
	out := transactionListDTO{
		Transactions: make([]transactionDTO, 0, len(page.Transactions)),
		Pagination: paginationDTO{
			CurrentPage:  page.Page.Number,
			TotalPages:   page.TotalPages(),
			TotalItems:   page.TotalItems,
			ItemsPerPage: page.Page.Size,
		},
	}
	for _, t := range page.Transactions {
		out.Transactions = append(out.Transactions, toTransactionDTO(t))
	}
	return out
}

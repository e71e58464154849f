package http

import (
	"net/http"

	applog "moneytracker/internal/log"
)

const (
	msgTransactionNotFound = "Transaction not found"
	msgTransactionCreated  = "Transaction created successfully"
	msgTransactionUpdated  = "Transaction updated successfully"
	msgTransactionDeleted  = "Transaction deleted successfully"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, page, err := ParseListQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, applog.OpList, err, msgTransactionNotFound)
		return
	}

	result, err := s.deps.Ledger.List(r.Context(), ownerID(r), filter, page)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err, msgTransactionNotFound)
		return
	}
	NewJSONResponse().Data(toTransactionListDTO(result)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Ledger.Get(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err, msgTransactionNotFound)
		return
	}
	NewJSONResponse().Data(map[string]any{"transaction": toTransactionDTO(tx)}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(w, r, s.bodyLimit())
	if err := parser.Parse(); err != nil {
		writeServiceError(w, r, applog.OpParse, err, msgTransactionNotFound)
		return
	}
	req, err := ParseNewTransaction(parser)
	if err != nil {
		writeServiceError(w, r, applog.OpParse, err, msgTransactionNotFound)
		return
	}

	tx, err := s.deps.Ledger.Create(r.Context(), ownerID(r), req, parser.Upload())
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err, msgTransactionNotFound)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentLedger).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().WithTransaction(tx.ID, string(tx.Type), tx.Amount.String(), tx.Category).ToSlice()...)
	NewJSONResponse().
		Status(http.StatusCreated).
		Message(msgTransactionCreated).
		Data(map[string]any{"transaction": toTransactionDTO(tx)}).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(w, r, s.bodyLimit())
	if err := parser.Parse(); err != nil {
		writeServiceError(w, r, applog.OpParse, err, msgTransactionNotFound)
		return
	}
	patch, err := ParseTransactionPatch(parser)
	if err != nil {
		writeServiceError(w, r, applog.OpParse, err, msgTransactionNotFound)
		return
	}

	tx, err := s.deps.Ledger.Update(r.Context(), ownerID(r), r.PathValue("id"), patch, parser.Upload())
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err, msgTransactionNotFound)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentLedger).InfoContext(r.Context(), "Transaction updated",
		applog.NewFields().WithTransaction(tx.ID, string(tx.Type), tx.Amount.String(), tx.Category).ToSlice()...)
	NewJSONResponse().
		Message(msgTransactionUpdated).
		Data(map[string]any{"transaction": toTransactionDTO(tx)}).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Ledger.Delete(r.Context(), ownerID(r), id); err != nil {
		writeServiceError(w, r, applog.OpDelete, err, msgTransactionNotFound)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentLedger).InfoContext(r.Context(), "Transaction deleted",
		applog.FieldTransactionID, id)
	NewJSONResponse().Message(msgTransactionDeleted).Write(w)
}

package http

import (
	"net/http"

	"moneytracker/internal/core"
	applog "moneytracker/internal/log"
)

const msgBudgetNotFound = "Budget not found"

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.deps.Budgets.List(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, applog.OpList, err, msgBudgetNotFound)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	NewJSONResponse().Data(map[string]any{"budgets": budgets}).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(w, r, bodyOverhead)
	if err := parser.Parse(); err != nil {
		writeServiceError(w, r, applog.OpParse, err, msgBudgetNotFound)
		return
	}
	budget, err := ParseBudget(parser)
	if err != nil {
		writeServiceError(w, r, applog.OpParse, err, msgBudgetNotFound)
		return
	}

	owner := ownerID(r)
	created, err := s.deps.Budgets.Create(r.Context(), owner, budget)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err, msgBudgetNotFound)
		return
	}
	s.invalidateAlerts(owner)

	applog.FromContext(r.Context()).WithComponent(applog.ComponentBudgets).InfoContext(r.Context(), "Budget created",
		"budget_id", created.ID, applog.FieldCategory, created.Category, "period", created.Period)
	NewJSONResponse().
		Status(http.StatusCreated).
		Message("Budget created successfully").
		Data(map[string]any{"budget": created}).
		Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if err := s.deps.Budgets.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		writeServiceError(w, r, applog.OpDelete, err, msgBudgetNotFound)
		return
	}
	s.invalidateAlerts(owner)
	NewJSONResponse().Message("Budget deleted successfully").Write(w)
}

func (s *Server) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.deps.Alerts.GetAlerts(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err, msgBudgetNotFound)
		return
	}
	if alerts == nil {
		alerts = []core.BudgetAlert{}
	}
	NewJSONResponse().Data(map[string]any{"alerts": alerts}).Write(w)
}

func (s *Server) invalidateAlerts(owner string) {
	if s.deps.InvalidateAlerts != nil {
		s.deps.InvalidateAlerts(owner)
	}
}

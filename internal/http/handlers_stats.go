package http

import (
	"net/http"
	"time"

	applog "moneytracker/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Stats.Summarize(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err, "Summary not found")
		return
	}
	NewJSONResponse().Data(map[string]any{"summary": summary}).Write(w)
}

// handleReport serves ?period=daily|weekly|monthly&date=YYYY-MM-DD.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	period, anchor, err := ParseReportQuery(r.URL.Query(), time.Now())
	if err != nil {
		writeServiceError(w, r, applog.OpParse, err, "Report not found")
		return
	}

	report, err := s.deps.Stats.Report(r.Context(), ownerID(r), period, anchor)
	if err != nil {
		writeServiceError(w, r, applog.OpReport, err, "Report not found")
		return
	}
	NewJSONResponse().Data(map[string]any{"report": report}).Write(w)
}

package http

import (
	"net/http"

	"gota/internal/core"
)

// readMonthAndCurrency parses the shared ?month=&currency= parameters.
func readMonthAndCurrency(r *http.Request) (core.Month, core.Currency, error) {
	q := r.URL.Query()
	verr := &core.ValidationError{}
	month := parseMonthParam(q, verr)
	currency := parseCurrencyParam(q, verr)
	return month, currency, verr.Err()
}

// handleDashboard always answers 200. Sections that could not be read are
// null and listed in "degraded".
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	month, currency, err := readMonthAndCurrency(r)
	if err != nil {
		writeError(w, r, "dashboard", err)
		return
	}
	NewResponse().JSON(s.svc.Dashboard.Dashboard(r.Context(), principal(r), month, currency)).Write(w)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	month, currency, err := readMonthAndCurrency(r)
	if err != nil {
		writeError(w, r, "analytics", err)
		return
	}
	NewResponse().JSON(s.svc.Analytics.Analytics(r.Context(), principal(r), month, currency)).Write(w)
}

package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"gota/internal/auth"
	"gota/internal/export"
)

// handleExport renders the whole CSV before writing, so a store failure
// still gets a proper JSON error instead of a truncated download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Export.Export(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, "export", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, out.Rows); err != nil {
		writeError(w, r, "export", err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Account.Delete(r.Context(), principal(r)); err != nil {
		writeError(w, r, "delete account", err)
		return
	}
	auth.ClearCookie(w, s.secure)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

package server

import (
	"net/http"
	"strings"

	"github.com/beroe-labs/abi/internal/model"
)

// handleSuppliers serves the portfolio summary, or a supplier search when
// action=search.
func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "", "portfolio":
		portfolio, err := s.intel.Portfolio(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, portfolio)
	case "search":
		query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
		if query == "" {
			writeError(w, http.StatusBadRequest, "query is required for search")
			return
		}
		suppliers, err := s.intel.Suppliers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		matches := make([]model.Supplier, 0)
		for _, sup := range suppliers {
			if strings.Contains(strings.ToLower(sup.Name), query) ||
				strings.Contains(strings.ToLower(sup.Category), query) {
				matches = append(matches, sup)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"suppliers": matches})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

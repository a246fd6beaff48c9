package web

import (
	"net/http"
	"strings"

	"github.com/vbonduro/placemate/internal/service"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, []*service.SearchHit{})
		return
	}

	hits, err := s.inventory.Search(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleClearCatalog(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "yes" {
		badRequest(w, "add ?confirm=yes to delete the whole catalog")
		return
	}
	if err := s.inventory.ClearAll(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

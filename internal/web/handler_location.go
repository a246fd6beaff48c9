package web

import (
	"net/http"
	"strings"

	"github.com/vbonduro/placemate/internal/domain"
)

const maxNameLen = 200

type createLocationRequest struct {
	Name     string              `json:"name"`
	Kind     domain.LocationKind `json:"kind"`
	ParentID *string             `json:"parent_id"`
	// Path creates or reuses a whole chain, room first. It excludes the
	// other fields.
	Path []string `json:"path"`
}

type updateLocationRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
	// ToRoot detaches the location and makes it a room.
	ToRoot bool `json:"to_root"`
}

type locationDetail struct {
	*domain.Location
	Path  string         `json:"path"`
	Items []*domain.Item `json:"items"`
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("tree") != "" {
		tree, err := s.inventory.LocationTree(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tree)
		return
	}
	locs, err := s.inventory.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.Path) > 0 {
		if req.Name != "" || req.ParentID != nil {
			badRequest(w, "path cannot be combined with name or parent_id")
			return
		}
		loc, err := s.inventory.ResolveLocationPath(r.Context(), req.Path)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, loc)
		return
	}

	if len(strings.TrimSpace(req.Name)) > maxNameLen {
		badRequest(w, "location name too long")
		return
	}
	loc, err := s.inventory.AddLocation(r.Context(), req.Name, req.Kind, req.ParentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	loc, err := s.inventory.GetLocation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	path, err := s.inventory.LocationPath(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.inventory.ItemsAt(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.Item{}
	}
	writeJSON(w, http.StatusOK, locationDetail{Location: loc, Path: path, Items: items})
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ToRoot && req.ParentID != nil {
		badRequest(w, "to_root cannot be combined with parent_id")
		return
	}

	loc, err := s.inventory.GetLocation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Name != nil {
		if len(strings.TrimSpace(*req.Name)) > maxNameLen {
			badRequest(w, "location name too long")
			return
		}
		if loc, err = s.inventory.RenameLocation(r.Context(), id, *req.Name); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.ParentID != nil || req.ToRoot {
		if loc, err = s.inventory.MoveLocation(r.Context(), id, req.ParentID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.inventory.DeleteLocation(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

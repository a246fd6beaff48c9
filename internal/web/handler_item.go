package web

import (
	"net/http"
	"time"

	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/service"
)

type createItemRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	LocationID  string `json:"location_id"`
}

type updateItemRequest struct {
	Name        *string            `json:"name"`
	Category    *string            `json:"category"`
	Description *string            `json:"description"`
	Status      *domain.ItemStatus `json:"status"`
	LocationID  *string            `json:"location_id"`
}

type borrowRequest struct {
	TakenBy string     `json:"taken_by"`
	DueAt   *time.Time `json:"due_at"`
	Note    string     `json:"note"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var (
		items []*domain.Item
		err   error
	)
	if locID := r.URL.Query().Get("location_id"); locID != "" {
		items, err = s.inventory.ItemsAt(r.Context(), locID)
	} else {
		items, err = s.inventory.ListItems(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Name) > maxNameLen {
		badRequest(w, "item name too long")
		return
	}
	item, err := s.inventory.CreateItem(r.Context(), service.NewItem{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		LocationID:  req.LocationID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.inventory.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name != nil && len(*req.Name) > maxNameLen {
		badRequest(w, "item name too long")
		return
	}

	item, err := s.inventory.UpdateItem(r.Context(), id, service.ItemUpdate{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.LocationID != nil {
		if item, err = s.inventory.MoveItem(r.Context(), id, *req.LocationID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.inventory.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBorrowItem(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev, err := s.inventory.BorrowItem(r.Context(), r.PathValue("id"), req.TakenBy, req.DueAt, req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleReturnItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.inventory.ReturnItem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleActiveBorrows(w http.ResponseWriter, r *http.Request) {
	borrows, err := s.inventory.ActiveBorrows(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, borrows)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/placemate/internal/category"
	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/photostore"
	"github.com/vbonduro/placemate/internal/reconcile"
	"github.com/vbonduro/placemate/internal/store"
	"github.com/vbonduro/placemate/internal/synonym"
)

// DefaultRoomName is used when a location path is empty.
const DefaultRoomName = "Default Room"

// InventoryService covers manual catalog management: locations, items,
// borrowing and search.
type InventoryService struct {
	catalog *store.Catalog
	photos  photostore.PhotoStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewInventoryService(catalog *store.Catalog, photos photostore.PhotoStore, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		catalog: catalog,
		photos:  photos,
		logger:  logger,
		now:     time.Now,
	}
}

// LocationNode is a location with its subtree.
type LocationNode struct {
	*domain.Location
	Children []*LocationNode `json:"children,omitempty"`
}

// ItemDetail is an item with its placement.
type ItemDetail struct {
	*domain.Item
	Location     *domain.Location    `json:"location,omitempty"`
	LocationPath string              `json:"location_path,omitempty"`
	ActiveBorrow *domain.BorrowEvent `json:"active_borrow,omitempty"`
}

// BorrowedItem is an open borrow event with the item it refers to.
type BorrowedItem struct {
	Event   *domain.BorrowEvent `json:"event"`
	Item    *domain.Item        `json:"item"`
	Overdue bool                `json:"overdue"`
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name is required")
	}
	return name, nil
}

// ---- locations ----

func (s *InventoryService) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	loc, err := s.catalog.Locations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	return loc, nil
}

func (s *InventoryService) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	return s.catalog.ListLocations(ctx)
}

// AddLocation returns the existing child of parentID with the same name,
// ignoring case, or creates it.
func (s *InventoryService) AddLocation(ctx context.Context, name string, kind domain.LocationKind, parentID *string) (*domain.Location, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = domain.KindStorage
		if parentID == nil {
			kind = domain.KindRoom
		}
	}
	if !kind.Valid() {
		return nil, invalid("unknown location kind %q", kind)
	}

	var loc *domain.Location
	err = s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		if parentID != nil {
			parent, err := tx.Locations.GetByID(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("parent %s: %w", *parentID, ErrNotFound)
			}
		}
		loc, err = mergeOrCreate(ctx, tx, name, kind, parentID)
		return err
	})
	if err != nil {
		return nil, storeErr("add location", err)
	}
	return loc, nil
}

// AddRoom creates or returns the room named name. Synonyms resolve to the
// same room, so "Pantry" returns an existing "Kitchen".
func (s *InventoryService) AddRoom(ctx context.Context, name string) (*domain.Location, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	rooms, err := s.catalog.Locations.Children(ctx, nil)
	if err != nil {
		return nil, err
	}
	key := reconcile.Key(name)
	for _, r := range rooms {
		if reconcile.Key(r.Name) == key {
			return r, nil
		}
	}
	return s.AddLocation(ctx, synonym.Display(name), domain.KindRoom, nil)
}

func mergeOrCreate(ctx context.Context, tx *store.Catalog, name string, kind domain.LocationKind, parentID *string) (*domain.Location, error) {
	existing, err := tx.Locations.FindChild(ctx, parentID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return tx.Locations.Create(ctx, name, kind, parentID, "")
}

// ResolveLocationPath walks names from a room downwards, reusing locations
// that match case-insensitively and creating the rest. The first segment is
// a room and the others are storage. An empty path resolves to
// DefaultRoomName.
func (s *InventoryService) ResolveLocationPath(ctx context.Context, path []string) (*domain.Location, error) {
	var segments []string
	for _, p := range path {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	if len(segments) == 0 {
		segments = []string{DefaultRoomName}
	}
	if len(segments) > store.MaxDepth {
		return nil, invalid("path is deeper than %d levels", store.MaxDepth)
	}

	var last *domain.Location
	err := s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		var parentID *string
		for i, name := range segments {
			kind := domain.KindStorage
			if i == 0 {
				kind = domain.KindRoom
			}
			loc, err := mergeOrCreate(ctx, tx, name, kind, parentID)
			if err != nil {
				return err
			}
			parentID = &loc.ID
			last = loc
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("resolve location path", err)
	}
	return last, nil
}

// LocationPath renders the chain from the room to id as "Room > Shelf > Box".
func (s *InventoryService) LocationPath(ctx context.Context, id string) (string, error) {
	chain, err := s.catalog.Locations.Ancestry(ctx, id)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	return joinPath(chain), nil
}

// LocationTree returns every room with its subtree.
func (s *InventoryService) LocationTree(ctx context.Context) ([]*LocationNode, error) {
	all, err := s.catalog.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*LocationNode, len(all))
	for _, loc := range all {
		nodes[loc.ID] = &LocationNode{Location: loc}
	}
	var roots []*LocationNode
	for _, loc := range all {
		node := nodes[loc.ID]
		if loc.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*loc.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots, nil
}

func (s *InventoryService) RenameLocation(ctx context.Context, id, name string) (*domain.Location, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Locations.Rename(ctx, id, name); err != nil {
		return nil, storeErr("rename location", err)
	}
	return s.GetLocation(ctx, id)
}

// MoveLocation reparents id. A nil parentID turns it into a room. Moving a
// location under itself or one of its descendants fails with
// ErrLocationCycle.
func (s *InventoryService) MoveLocation(ctx context.Context, id string, parentID *string) (*domain.Location, error) {
	err := s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		loc, err := tx.Locations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if loc == nil {
			return fmt.Errorf("location %s: %w", id, ErrNotFound)
		}

		kind := loc.Kind
		if parentID == nil {
			kind = domain.KindRoom
		} else {
			parent, err := tx.Locations.GetByID(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("parent %s: %w", *parentID, ErrNotFound)
			}
			cycle, err := tx.Locations.IsDescendant(ctx, id, *parentID)
			if err != nil {
				return err
			}
			if cycle {
				return ErrLocationCycle
			}
			if kind == domain.KindRoom {
				kind = domain.KindStorage
			}
		}
		return tx.Locations.SetParent(ctx, id, parentID, kind)
	})
	if err != nil {
		return nil, storeErr("move location", err)
	}
	return s.GetLocation(ctx, id)
}

// DeleteLocation removes an empty location. Locations that still hold
// children or items fail with ErrLocationNotEmpty.
func (s *InventoryService) DeleteLocation(ctx context.Context, id string) error {
	var photoRef string
	err := s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		loc, err := tx.Locations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if loc == nil {
			return fmt.Errorf("location %s: %w", id, ErrNotFound)
		}
		children, items, err := tx.Locations.Contents(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 || items > 0 {
			return fmt.Errorf("%w: %d locations and %d items inside", ErrLocationNotEmpty, children, items)
		}
		photoRef = loc.PhotoRef
		return tx.Locations.Delete(ctx, id)
	})
	if err != nil {
		return storeErr("delete location", err)
	}
	s.deletePhoto(ctx, photoRef)
	return nil
}

// ---- items ----

type NewItem struct {
	Name        string
	Category    string
	Description string
	PhotoRef    string
	LocationID  string
}

// CreateItem adds an item placed at LocationID. A taken name gets the next
// free " (n)" suffix. The category is derived from the name when empty.
func (s *InventoryService) CreateItem(ctx context.Context, in NewItem) (*ItemDetail, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.LocationID) == "" {
		return nil, invalid("location is required")
	}
	cat := strings.TrimSpace(in.Category)
	if cat == "" {
		cat = category.MapToCategory(synonym.Normalize(name))
	}

	var item *domain.Item
	err = s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		loc, err := tx.Locations.GetByID(ctx, in.LocationID)
		if err != nil {
			return err
		}
		if loc == nil {
			return fmt.Errorf("location %s: %w", in.LocationID, ErrNotFound)
		}
		names, err := tx.ItemNames(ctx)
		if err != nil {
			return err
		}
		item = &domain.Item{
			Name:        reconcile.NewNameSet(names).Claim(name),
			Category:    cat,
			Description: strings.TrimSpace(in.Description),
			PhotoRef:    in.PhotoRef,
			Status:      domain.StatusPresent,
		}
		return tx.SaveItem(ctx, item, loc.ID)
	})
	if err != nil {
		return nil, storeErr("create item", err)
	}
	s.logger.Info("item created", "id", item.ID, "name", item.Name, "location_id", in.LocationID)
	return s.GetItem(ctx, item.ID)
}

func (s *InventoryService) GetItem(ctx context.Context, id string) (*ItemDetail, error) {
	item, err := s.catalog.Items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	detail := &ItemDetail{Item: item}

	p, err := s.catalog.Items.Placement(ctx, id)
	if err != nil {
		return nil, err
	}
	if p != nil {
		chain, err := s.catalog.Locations.Ancestry(ctx, p.LocationID)
		if err != nil {
			return nil, err
		}
		if len(chain) > 0 {
			detail.Location = chain[len(chain)-1]
			detail.LocationPath = joinPath(chain)
		}
	}

	if item.Status == domain.StatusTaken {
		ev, err := s.catalog.Borrows.ActiveForItem(ctx, id)
		if err != nil {
			return nil, err
		}
		detail.ActiveBorrow = ev
	}
	return detail, nil
}

func (s *InventoryService) ListItems(ctx context.Context) ([]*domain.Item, error) {
	return s.catalog.Items.List(ctx)
}

// ItemsAt lists the items placed directly at locationID.
func (s *InventoryService) ItemsAt(ctx context.Context, locationID string) ([]*domain.Item, error) {
	if _, err := s.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return s.catalog.ItemsForLocation(ctx, locationID)
}

type ItemUpdate struct {
	Name        *string
	Category    *string
	Description *string
	Status      *domain.ItemStatus
}

// UpdateItem applies the non-nil fields. Renaming onto another item's name
// fails with ErrNameTaken.
func (s *InventoryService) UpdateItem(ctx context.Context, id string, upd ItemUpdate) (*ItemDetail, error) {
	item, err := s.catalog.Items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}

	if upd.Name != nil {
		name, err := cleanName(*upd.Name)
		if err != nil {
			return nil, err
		}
		item.Name = name
	}
	if upd.Category != nil {
		item.Category = strings.TrimSpace(*upd.Category)
	}
	if upd.Description != nil {
		item.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, invalid("unknown status %q", *upd.Status)
		}
		item.Status = *upd.Status
	}

	if err := s.catalog.Items.Update(ctx, item); err != nil {
		return nil, storeErr("update item", err)
	}
	return s.GetItem(ctx, id)
}

func (s *InventoryService) MoveItem(ctx context.Context, id, locationID string) (*ItemDetail, error) {
	err := s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		item, err := tx.Items.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		loc, err := tx.Locations.GetByID(ctx, locationID)
		if err != nil {
			return err
		}
		if loc == nil {
			return fmt.Errorf("location %s: %w", locationID, ErrNotFound)
		}
		return tx.Items.Place(ctx, id, locationID)
	})
	if err != nil {
		return nil, storeErr("move item", err)
	}
	return s.GetItem(ctx, id)
}

func (s *InventoryService) DeleteItem(ctx context.Context, id string) error {
	item, err := s.catalog.Items.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err := s.catalog.Items.Delete(ctx, id); err != nil {
		return storeErr("delete item", err)
	}
	if item.PhotoRef == "" {
		return nil
	}
	shared, err := s.catalog.Items.PhotoInUse(ctx, item.PhotoRef)
	if err != nil {
		s.logger.Warn("failed to check photo usage", "key", item.PhotoRef, "error", err)
		return nil
	}
	if !shared {
		s.deletePhoto(ctx, item.PhotoRef)
	}
	return nil
}

// SearchHit is a search result with the rendered path of its location.
type SearchHit struct {
	*store.PlacedItem
	Path string `json:"path,omitempty"`
}

// Search matches q against item names, categories and location names.
func (s *InventoryService) Search(ctx context.Context, q string) ([]*SearchHit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, invalid("query is required")
	}
	found, err := s.catalog.Items.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	hits := make([]*SearchHit, 0, len(found))
	paths := make(map[string]string)
	for _, f := range found {
		hit := &SearchHit{PlacedItem: f}
		if f.Location != nil {
			path, ok := paths[f.Location.ID]
			if !ok {
				if path, err = s.LocationPath(ctx, f.Location.ID); err != nil {
					return nil, err
				}
				paths[f.Location.ID] = path
			}
			hit.Path = path
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// ---- borrowing ----

// BorrowItem marks the item taken by takenBy. dueAt may be nil.
func (s *InventoryService) BorrowItem(ctx context.Context, id, takenBy string, dueAt *time.Time, note string) (*domain.BorrowEvent, error) {
	takenBy = strings.TrimSpace(takenBy)
	if takenBy == "" {
		return nil, invalid("borrower is required")
	}

	var ev *domain.BorrowEvent
	err := s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		item, err := tx.Items.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		active, err := tx.Borrows.ActiveForItem(ctx, id)
		if err != nil {
			return err
		}
		if active != nil {
			return invalid("%s is already taken by %s", item.Name, active.TakenBy)
		}
		if err := tx.Items.SetStatus(ctx, id, domain.StatusTaken); err != nil {
			return err
		}
		ev = &domain.BorrowEvent{
			ItemID:  id,
			TakenBy: takenBy,
			TakenAt: s.now().UTC(),
			DueAt:   dueAt,
			Note:    strings.TrimSpace(note),
		}
		return tx.Borrows.Create(ctx, ev)
	})
	if err != nil {
		return nil, storeErr("borrow item", err)
	}
	s.logger.Info("item borrowed", "item_id", id, "taken_by", takenBy)
	return ev, nil
}

// ReturnItem marks the item present and closes its open borrow event, if
// any.
func (s *InventoryService) ReturnItem(ctx context.Context, id string) (*ItemDetail, error) {
	err := s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		item, err := tx.Items.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		if err := tx.Items.SetStatus(ctx, id, domain.StatusPresent); err != nil {
			return err
		}
		active, err := tx.Borrows.ActiveForItem(ctx, id)
		if err != nil {
			return err
		}
		if active == nil {
			return nil
		}
		return tx.Borrows.Close(ctx, active.ID, s.now())
	})
	if err != nil {
		return nil, storeErr("return item", err)
	}
	return s.GetItem(ctx, id)
}

// ActiveBorrows lists items that are out, oldest first.
func (s *InventoryService) ActiveBorrows(ctx context.Context) ([]*BorrowedItem, error) {
	events, err := s.catalog.Borrows.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*BorrowedItem, 0, len(events))
	for _, ev := range events {
		item, err := s.catalog.Items.GetByID(ctx, ev.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		out = append(out, &BorrowedItem{
			Event:   ev,
			Item:    item,
			Overdue: ev.DueAt != nil && ev.DueAt.Before(now),
		})
	}
	return out, nil
}

// ---- maintenance ----

// ClearAll deletes the whole catalog. Stored photos are left in place.
func (s *InventoryService) ClearAll(ctx context.Context) error {
	if err := s.catalog.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}
	s.logger.Warn("catalog cleared")
	return nil
}

func (s *InventoryService) deletePhoto(ctx context.Context, key string) {
	if key == "" || s.photos == nil {
		return
	}
	if err := s.photos.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete photo", "key", key, "error", err)
	}
}

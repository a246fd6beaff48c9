package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vbonduro/placemate/internal/domain"
)

const itemColumns = `i.id, i.name, i.category, i.description, i.photo_ref, i.status, i.created_at, i.updated_at`

type ItemStore struct {
	db dbtx
}

func NewItemStore(db dbtx) *ItemStore {
	return &ItemStore{db: db}
}

// PlacedItem is an item with its current location, if it has one.
type PlacedItem struct {
	Item     *domain.Item     `json:"item"`
	Location *domain.Location `json:"location,omitempty"`
}

func scanItem(row scanner) (*domain.Item, error) {
	item := &domain.Item{}
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Description, &item.PhotoRef, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemStore) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer closeRows(rows)

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// Create inserts item, filling in ID, Status and timestamps when unset.
// ErrDuplicate is returned when the name is taken, ignoring case.
func (s *ItemStore) Create(ctx context.Context, item *domain.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = domain.StatusPresent
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, category, description, photo_ref, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Name, item.Category, item.Description, item.PhotoRef, item.Status, item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to create item %q: %w", item.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (s *ItemStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items i WHERE i.id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (s *ItemStore) GetByName(ctx context.Context, name string) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items i WHERE i.name = ? COLLATE NOCASE
	`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (s *ItemStore) List(ctx context.Context) ([]*domain.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items i ORDER BY i.name COLLATE NOCASE ASC
	`)
}

// ListByLocation lists the items placed directly at locationID.
func (s *ItemStore) ListByLocation(ctx context.Context, locationID string) ([]*domain.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items i
		JOIN item_placements p ON p.item_id = i.id
		WHERE p.location_id = ?
		ORDER BY i.name COLLATE NOCASE ASC
	`, locationID)
}

// Names returns every item name in the catalog.
func (s *ItemStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM items`)
	if err != nil {
		return nil, fmt.Errorf("failed to list item names: %w", err)
	}
	defer closeRows(rows)

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan item name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item names: %w", err)
	}
	return names, nil
}

func (s *ItemStore) Update(ctx context.Context, item *domain.Item) error {
	item.UpdatedAt = now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET name = ?, category = ?, description = ?, photo_ref = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, item.Name, item.Category, item.Description, item.PhotoRef, item.Status, item.UpdatedAt, item.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to rename item to %q: %w", item.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return checkAffected(result)
}

func (s *ItemStore) SetStatus(ctx context.Context, id string, status domain.ItemStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = ?, updated_at = ? WHERE id = ?
	`, status, now(), id)
	if err != nil {
		return fmt.Errorf("failed to set item status: %w", err)
	}
	return checkAffected(result)
}

func (s *ItemStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return checkAffected(result)
}

// PhotoInUse reports whether any item still references photoRef. Copies of
// one detection share a crop.
func (s *ItemStore) PhotoInUse(ctx context.Context, photoRef string) (bool, error) {
	var used bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE photo_ref = ?)`, photoRef).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check photo usage: %w", err)
	}
	return used, nil
}

func (s *ItemStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

// Place makes locationID the only placement of itemID.
func (s *ItemStore) Place(ctx context.Context, itemID, locationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM item_placements WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("failed to clear placement: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_placements (item_id, location_id, created_at) VALUES (?, ?, ?)
	`, itemID, locationID, now())
	if err != nil {
		return fmt.Errorf("failed to place item: %w", err)
	}
	return nil
}

// Placement returns the item's placement, or nil when it has none.
func (s *ItemStore) Placement(ctx context.Context, itemID string) (*domain.Placement, error) {
	p := &domain.Placement{}
	err := s.db.QueryRowContext(ctx, `
		SELECT item_id, location_id, created_at FROM item_placements WHERE item_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, itemID).Scan(&p.ItemID, &p.LocationID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get placement: %w", err)
	}
	return p, nil
}

func (s *ItemStore) DeleteAllPlacements(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM item_placements`); err != nil {
		return fmt.Errorf("failed to delete placements: %w", err)
	}
	return nil
}

// Search matches q against item names, categories and the names of the
// locations items are placed at, ignoring case.
func (s *ItemStore) Search(ctx context.Context, q string) ([]*PlacedItem, error) {
	pattern := likePattern(q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`,
			l.id, l.name, l.kind, l.parent_id, l.photo_ref, l.created_at
		FROM items i
		LEFT JOIN item_placements p ON p.item_id = i.id
		LEFT JOIN locations l ON l.id = p.location_id
		WHERE LOWER(i.name) LIKE ? ESCAPE '\'
			OR LOWER(i.category) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(l.name, '')) LIKE ? ESCAPE '\'
		ORDER BY i.name COLLATE NOCASE ASC
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer closeRows(rows)

	var results []*PlacedItem
	for rows.Next() {
		item := &domain.Item{}
		var (
			locID, locName, locKind, locParent, locPhoto sql.NullString
			locCreated                                   sql.NullTime
		)
		err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Description, &item.PhotoRef, &item.Status, &item.CreatedAt, &item.UpdatedAt,
			&locID, &locName, &locKind, &locParent, &locPhoto, &locCreated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		hit := &PlacedItem{Item: item}
		if locID.Valid {
			hit.Location = &domain.Location{
				ID:        locID.String,
				Name:      locName.String,
				Kind:      domain.LocationKind(locKind.String),
				ParentID:  stringPtr(locParent),
				PhotoRef:  locPhoto.String,
				CreatedAt: locCreated.Time,
			}
		}
		results = append(results, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	return results, nil
}

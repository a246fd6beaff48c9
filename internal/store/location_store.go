package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vbonduro/placemate/internal/domain"
)

// MaxDepth bounds ancestry walks so a corrupted parent chain cannot loop.
const MaxDepth = 32

const locationColumns = `id, name, kind, parent_id, photo_ref, created_at`

type LocationStore struct {
	db dbtx
}

func NewLocationStore(db dbtx) *LocationStore {
	return &LocationStore{db: db}
}

func scanLocation(row scanner) (*domain.Location, error) {
	loc := &domain.Location{}
	var parent sql.NullString
	if err := row.Scan(&loc.ID, &loc.Name, &loc.Kind, &parent, &loc.PhotoRef, &loc.CreatedAt); err != nil {
		return nil, err
	}
	loc.ParentID = stringPtr(parent)
	return loc, nil
}

func (s *LocationStore) queryLocations(ctx context.Context, query string, args ...any) ([]*domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer closeRows(rows)

	var locations []*domain.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}
	return locations, nil
}

// Create inserts a location. ErrDuplicate is returned when parentID already
// has a child with the same name, ignoring case.
func (s *LocationStore) Create(ctx context.Context, name string, kind domain.LocationKind, parentID *string, photoRef string) (*domain.Location, error) {
	loc := &domain.Location{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		ParentID:  parentID,
		PhotoRef:  photoRef,
		CreatedAt: now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, kind, parent_id, photo_ref, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`, loc.ID, loc.Name, loc.Kind, nullString(parentID), loc.PhotoRef, loc.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create location %q: %w", name, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return loc, nil
}

func (s *LocationStore) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	loc, err := scanLocation(s.db.QueryRowContext(ctx, `
		SELECT `+locationColumns+` FROM locations WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

// FindChild returns the child of parentID named name, ignoring case. A nil
// parentID searches the rooms.
func (s *LocationStore) FindChild(ctx context.Context, parentID *string, name string) (*domain.Location, error) {
	loc, err := scanLocation(s.db.QueryRowContext(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE COALESCE(parent_id, '') = COALESCE(?, '') AND name = ? COLLATE NOCASE
	`, nullString(parentID), name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	return loc, nil
}

func (s *LocationStore) List(ctx context.Context) ([]*domain.Location, error) {
	return s.queryLocations(ctx, `
		SELECT `+locationColumns+` FROM locations ORDER BY name COLLATE NOCASE ASC, id ASC
	`)
}

// Children lists the direct children of parentID, or the rooms when parentID
// is nil.
func (s *LocationStore) Children(ctx context.Context, parentID *string) ([]*domain.Location, error) {
	return s.queryLocations(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE COALESCE(parent_id, '') = COALESCE(?, '')
		ORDER BY name COLLATE NOCASE ASC, id ASC
	`, nullString(parentID))
}

// Ancestry returns the chain from the root down to id, inclusive. The walk
// stops after MaxDepth hops.
func (s *LocationStore) Ancestry(ctx context.Context, id string) ([]*domain.Location, error) {
	chain, err := s.queryLocations(ctx, `
		WITH RECURSIVE chain(id, depth) AS (
			SELECT id, 0 FROM locations WHERE id = ?
			UNION ALL
			SELECT l.parent_id, c.depth + 1 FROM locations l
			JOIN chain c ON l.id = c.id
			WHERE l.parent_id IS NOT NULL AND c.depth < ?
		)
		SELECT l.id, l.name, l.kind, l.parent_id, l.photo_ref, l.created_at
		FROM chain c JOIN locations l ON l.id = c.id
		ORDER BY c.depth DESC
	`, id, MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to walk ancestry: %w", err)
	}
	return chain, nil
}

// IsDescendant reports whether candidate lies in the subtree of ancestor,
// ancestor itself included. The walk has no depth limit; UNION drops
// revisited ids so it ends even on a corrupted parent chain.
func (s *LocationStore) IsDescendant(ctx context.Context, ancestor, candidate string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM locations WHERE id = ?
			UNION
			SELECT l.id FROM locations l
			JOIN subtree s ON l.parent_id = s.id
		)
		SELECT COUNT(*) FROM subtree WHERE id = ?
	`, ancestor, candidate).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check subtree: %w", err)
	}
	return found > 0, nil
}

func (s *LocationStore) Rename(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE locations SET name = ? WHERE id = ?`, name, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to rename location to %q: %w", name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to rename location: %w", err)
	}
	return checkAffected(result)
}

// SetParent moves id under parentID. Callers must reject cycles first.
func (s *LocationStore) SetParent(ctx context.Context, id string, parentID *string, kind domain.LocationKind) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE locations SET parent_id = ?, kind = ? WHERE id = ?
	`, nullString(parentID), kind, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to move location: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to move location: %w", err)
	}
	return checkAffected(result)
}

func (s *LocationStore) SetPhoto(ctx context.Context, id, photoRef string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE locations SET photo_ref = ? WHERE id = ?`, photoRef, id)
	if err != nil {
		return fmt.Errorf("failed to set location photo: %w", err)
	}
	return checkAffected(result)
}

// Contents counts the direct children and the items placed at id.
func (s *LocationStore) Contents(ctx context.Context, id string) (children, items int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM locations WHERE parent_id = ?),
			(SELECT COUNT(*) FROM item_placements WHERE location_id = ?)
	`, id, id).Scan(&children, &items)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count location contents: %w", err)
	}
	return children, items, nil
}

func (s *LocationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	return checkAffected(result)
}

func (s *LocationStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locations`); err != nil {
		return fmt.Errorf("failed to delete locations: %w", err)
	}
	return nil
}

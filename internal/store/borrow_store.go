package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/placemate/internal/domain"
)

const borrowColumns = `id, item_id, taken_by, taken_at, due_at, returned_at, note`

type BorrowStore struct {
	db dbtx
}

func NewBorrowStore(db dbtx) *BorrowStore {
	return &BorrowStore{db: db}
}

func scanBorrow(row scanner) (*domain.BorrowEvent, error) {
	ev := &domain.BorrowEvent{}
	var due, returned sql.NullTime
	if err := row.Scan(&ev.ID, &ev.ItemID, &ev.TakenBy, &ev.TakenAt, &due, &returned, &ev.Note); err != nil {
		return nil, err
	}
	ev.DueAt = timePtr(due)
	ev.ReturnedAt = timePtr(returned)
	return ev, nil
}

func (s *BorrowStore) queryEvents(ctx context.Context, query string, args ...any) ([]*domain.BorrowEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list borrow events: %w", err)
	}
	defer closeRows(rows)

	var events []*domain.BorrowEvent
	for rows.Next() {
		ev, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrow event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating borrow events: %w", err)
	}
	return events, nil
}

func (s *BorrowStore) Create(ctx context.Context, ev *domain.BorrowEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.TakenAt.IsZero() {
		ev.TakenAt = now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO borrow_events (id, item_id, taken_by, taken_at, due_at, returned_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.ItemID, ev.TakenBy, ev.TakenAt.UTC(), nullTime(ev.DueAt), nullTime(ev.ReturnedAt), ev.Note)
	if err != nil {
		return fmt.Errorf("failed to create borrow event: %w", err)
	}
	return nil
}

// ActiveForItem returns the item's open borrow event, or nil.
func (s *BorrowStore) ActiveForItem(ctx context.Context, itemID string) (*domain.BorrowEvent, error) {
	ev, err := scanBorrow(s.db.QueryRowContext(ctx, `
		SELECT `+borrowColumns+` FROM borrow_events
		WHERE item_id = ? AND returned_at IS NULL
		ORDER BY taken_at DESC LIMIT 1
	`, itemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrow event: %w", err)
	}
	return ev, nil
}

// Close marks the event returned at returnedAt.
func (s *BorrowStore) Close(ctx context.Context, id string, returnedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE borrow_events SET returned_at = ? WHERE id = ? AND returned_at IS NULL
	`, returnedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to close borrow event: %w", err)
	}
	return checkAffected(result)
}

// ListActive lists every open borrow event, oldest first.
func (s *BorrowStore) ListActive(ctx context.Context) ([]*domain.BorrowEvent, error) {
	return s.queryEvents(ctx, `
		SELECT `+borrowColumns+` FROM borrow_events WHERE returned_at IS NULL ORDER BY taken_at ASC
	`)
}

func (s *BorrowStore) ListByItem(ctx context.Context, itemID string) ([]*domain.BorrowEvent, error) {
	return s.queryEvents(ctx, `
		SELECT `+borrowColumns+` FROM borrow_events WHERE item_id = ? ORDER BY taken_at DESC
	`, itemID)
}

func (s *BorrowStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM borrow_events`); err != nil {
		return fmt.Errorf("failed to delete borrow events: %w", err)
	}
	return nil
}

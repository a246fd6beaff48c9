package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/placemate/internal/domain"
)

// Catalog groups the stores over one connection or transaction. It is the
// store the reconciliation core writes through.
type Catalog struct {
	db        *sql.DB
	Locations *LocationStore
	Items     *ItemStore
	Borrows   *BorrowStore
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{
		db:        db,
		Locations: NewLocationStore(db),
		Items:     NewItemStore(db),
		Borrows:   NewBorrowStore(db),
	}
}

func newTxCatalog(tx *sql.Tx) *Catalog {
	return &Catalog{
		Locations: NewLocationStore(tx),
		Items:     NewItemStore(tx),
		Borrows:   NewBorrowStore(tx),
	}
}

// WithTx runs fn against a Catalog bound to a new transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (c *Catalog) WithTx(ctx context.Context, fn func(tx *Catalog) error) error {
	if c.db == nil {
		return fmt.Errorf("nested transactions are not supported")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(newTxCatalog(tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			slog.Error("failed to roll back transaction", "error", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *Catalog) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	return c.Locations.List(ctx)
}

func (c *Catalog) AddLocation(ctx context.Context, name string, kind domain.LocationKind, parentID *string, photoRef string) (*domain.Location, error) {
	return c.Locations.Create(ctx, name, kind, parentID, photoRef)
}

func (c *Catalog) ItemNames(ctx context.Context) ([]string, error) {
	return c.Items.Names(ctx)
}

// SaveItem inserts item and places it at locationID.
func (c *Catalog) SaveItem(ctx context.Context, item *domain.Item, locationID string) error {
	if err := c.Items.Create(ctx, item); err != nil {
		return err
	}
	return c.Items.Place(ctx, item.ID, locationID)
}

func (c *Catalog) ItemsForLocation(ctx context.Context, locationID string) ([]*domain.Item, error) {
	return c.Items.ListByLocation(ctx, locationID)
}

// Clear deletes every borrow event, placement, item and location.
func (c *Catalog) Clear(ctx context.Context) error {
	return c.WithTx(ctx, func(tx *Catalog) error {
		if err := tx.Borrows.DeleteAll(ctx); err != nil {
			return err
		}
		if err := tx.Items.DeleteAllPlacements(ctx); err != nil {
			return err
		}
		if err := tx.Items.DeleteAll(ctx); err != nil {
			return err
		}
		return tx.Locations.DeleteAll(ctx)
	})
}

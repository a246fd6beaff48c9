package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/placemate/internal/domain"
)

func createItem(t *testing.T, s *ItemStore, name, category string) *domain.Item {
	t.Helper()
	item := &domain.Item{Name: name, Category: category}
	require.NoError(t, s.Create(context.Background(), item))
	return item
}

func TestItemStoreCreateAndGet(t *testing.T) {
	items := NewItemStore(openTestDB(t))
	ctx := context.Background()

	item := createItem(t, items, "Hammer", "Tools")
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, domain.StatusPresent, item.Status)

	got, err := items.GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hammer", got.Name)
	assert.Equal(t, "Tools", got.Category)
	assert.Equal(t, domain.StatusPresent, got.Status)
	assert.WithinDuration(t, item.CreatedAt, got.CreatedAt, time.Second)

	got, err = items.GetByName(ctx, "hammer")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.ID, got.ID)

	got, err = items.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestItemStoreNamesAreUniqueIgnoringCase(t *testing.T) {
	items := NewItemStore(openTestDB(t))

	createItem(t, items, "Mug", "")
	err := items.Create(context.Background(), &domain.Item{Name: "MUG"})
	assert.ErrorIs(t, err, ErrDuplicate)

	names, err := items.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Mug"}, names)
}

func TestItemStoreUpdate(t *testing.T) {
	items := NewItemStore(openTestDB(t))
	ctx := context.Background()

	mug := createItem(t, items, "Mug", "Kitchen")
	createItem(t, items, "Cup", "Kitchen")

	mug.Description = "blue"
	mug.Status = domain.StatusUnknown
	require.NoError(t, items.Update(ctx, mug))

	got, err := items.GetByID(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, "blue", got.Description)
	assert.Equal(t, domain.StatusUnknown, got.Status)

	mug.Name = "cup"
	assert.ErrorIs(t, items.Update(ctx, mug), ErrDuplicate)

	require.NoError(t, items.SetStatus(ctx, mug.ID, domain.StatusTaken))
	got, err = items.GetByID(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTaken, got.Status)

	assert.ErrorIs(t, items.SetStatus(ctx, "missing", domain.StatusTaken), ErrNotFound)
}

func TestItemStorePlaceReplacesPlacement(t *testing.T) {
	d := openTestDB(t)
	locations := NewLocationStore(d)
	items := NewItemStore(d)
	ctx := context.Background()

	kitchen := createLocation(t, locations, "Kitchen", domain.KindRoom, nil)
	drawer := createLocation(t, locations, "Drawer", domain.KindStorage, kitchen)
	spoon := createItem(t, items, "Spoon", "")

	require.NoError(t, items.Place(ctx, spoon.ID, kitchen.ID))
	require.NoError(t, items.Place(ctx, spoon.ID, drawer.ID))

	p, err := items.Placement(ctx, spoon.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, drawer.ID, p.LocationID)

	atKitchen, err := items.ListByLocation(ctx, kitchen.ID)
	require.NoError(t, err)
	assert.Empty(t, atKitchen)

	atDrawer, err := items.ListByLocation(ctx, drawer.ID)
	require.NoError(t, err)
	require.Len(t, atDrawer, 1)
	assert.Equal(t, "Spoon", atDrawer[0].Name)

	assert.Error(t, items.Place(ctx, spoon.ID, "missing"))
}

func TestItemStoreDeleteCascadesPlacement(t *testing.T) {
	d := openTestDB(t)
	locations := NewLocationStore(d)
	items := NewItemStore(d)
	ctx := context.Background()

	room := createLocation(t, locations, "Office", domain.KindRoom, nil)
	pen := createItem(t, items, "Pen", "")
	require.NoError(t, items.Place(ctx, pen.ID, room.ID))

	require.NoError(t, items.Delete(ctx, pen.ID))
	assert.ErrorIs(t, items.Delete(ctx, pen.ID), ErrNotFound)

	_, n, err := locations.Contents(ctx, room.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestItemStoreSearch(t *testing.T) {
	d := openTestDB(t)
	locations := NewLocationStore(d)
	items := NewItemStore(d)
	ctx := context.Background()

	garage := createLocation(t, locations, "Garage", domain.KindRoom, nil)
	toolbox := createLocation(t, locations, "Red Toolbox", domain.KindContainer, garage)

	wrench := createItem(t, items, "Wrench", "Tools")
	require.NoError(t, items.Place(ctx, wrench.ID, toolbox.ID))
	novel := createItem(t, items, "Novel", "Media")
	require.NoError(t, items.Place(ctx, novel.ID, garage.ID))
	createItem(t, items, "Loose Screw", "Tools")
	createItem(t, items, "100% Cotton Shirt", "Apparel")

	tests := []struct {
		query string
		want  []string
	}{
		{"wrench", []string{"Wrench"}},
		{"TOOLS", []string{"Loose Screw", "Wrench"}},
		{"toolbox", []string{"Wrench"}},
		{"garage", []string{"Novel"}},
		{"100%", []string{"100% Cotton Shirt"}},
		{"_", nil},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hits, err := items.Search(ctx, tt.query)
			require.NoError(t, err)
			var names []string
			for _, h := range hits {
				names = append(names, h.Item.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	hits, err := items.Search(ctx, "wrench")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].Location)
	assert.Equal(t, "Red Toolbox", hits[0].Location.Name)
	assert.Equal(t, garage.ID, *hits[0].Location.ParentID)

	hits, err = items.Search(ctx, "screw")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Nil(t, hits[0].Location)
}

func TestBorrowStore(t *testing.T) {
	d := openTestDB(t)
	items := NewItemStore(d)
	borrows := NewBorrowStore(d)
	ctx := context.Background()

	drill := createItem(t, items, "Drill", "Tools")
	due := time.Now().Add(48 * time.Hour)
	ev := &domain.BorrowEvent{ItemID: drill.ID, TakenBy: "Sam", DueAt: &due, Note: "deck repair"}
	require.NoError(t, borrows.Create(ctx, ev))

	active, err := borrows.ActiveForItem(ctx, drill.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "Sam", active.TakenBy)
	require.NotNil(t, active.DueAt)
	assert.WithinDuration(t, due, *active.DueAt, time.Second)
	assert.True(t, active.Active())

	open, err := borrows.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	require.NoError(t, borrows.Close(ctx, ev.ID, time.Now()))
	assert.ErrorIs(t, borrows.Close(ctx, ev.ID, time.Now()), ErrNotFound)

	active, err = borrows.ActiveForItem(ctx, drill.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	history, err := borrows.ListByItem(ctx, drill.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].ReturnedAt)
	assert.False(t, history[0].Active())
}

func TestCatalogWithTxRollsBack(t *testing.T) {
	catalog := NewCatalog(openTestDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := catalog.WithTx(ctx, func(tx *Catalog) error {
		room, err := tx.AddLocation(ctx, "Kitchen", domain.KindRoom, nil, "")
		require.NoError(t, err)
		require.NoError(t, tx.SaveItem(ctx, &domain.Item{Name: "Kettle"}, room.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	locs, err := catalog.ListLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs)
	names, err := catalog.ItemNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCatalogWithTxCommits(t *testing.T) {
	catalog := NewCatalog(openTestDB(t))
	ctx := context.Background()

	var roomID string
	err := catalog.WithTx(ctx, func(tx *Catalog) error {
		room, err := tx.AddLocation(ctx, "Kitchen", domain.KindRoom, nil, "")
		if err != nil {
			return err
		}
		roomID = room.ID
		return tx.SaveItem(ctx, &domain.Item{Name: "Kettle"}, room.ID)
	})
	require.NoError(t, err)

	got, err := catalog.ItemsForLocation(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kettle", got[0].Name)

	assert.Error(t, catalog.WithTx(ctx, func(tx *Catalog) error {
		return tx.WithTx(ctx, func(*Catalog) error { return nil })
	}))
}

func TestCatalogClear(t *testing.T) {
	catalog := NewCatalog(openTestDB(t))
	ctx := context.Background()

	room, err := catalog.AddLocation(ctx, "Garage", domain.KindRoom, nil, "")
	require.NoError(t, err)
	rack, err := catalog.AddLocation(ctx, "Rack", domain.KindStorage, &room.ID, "")
	require.NoError(t, err)
	drill := &domain.Item{Name: "Drill"}
	require.NoError(t, catalog.SaveItem(ctx, drill, rack.ID))
	require.NoError(t, catalog.Borrows.Create(ctx, &domain.BorrowEvent{ItemID: drill.ID, TakenBy: "Sam"}))

	require.NoError(t, catalog.Clear(ctx))

	locs, err := catalog.ListLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs)
	names, err := catalog.ItemNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	open, err := catalog.Borrows.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

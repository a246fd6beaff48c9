package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/placemate/internal/db"
	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/photostore"
	"github.com/vbonduro/placemate/internal/scanlock"
	"github.com/vbonduro/placemate/internal/store"
	"github.com/vbonduro/placemate/internal/vision"
)

// stubAnalyzer is a minimal vision.SceneAnalyzer for tests.
type stubAnalyzer struct {
	mu     sync.Mutex
	result *vision.SceneResult
	err    error
	hints  []string
}

func (s *stubAnalyzer) RecognizeScene(_ context.Context, _ io.Reader, _, hint string) (*vision.SceneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = append(s.hints, hint)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubPhotoStore is a minimal in-memory photostore.PhotoStore for tests.
type stubPhotoStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
	n       int
}

func newStubPhotoStore() *stubPhotoStore {
	return &stubPhotoStore{saved: make(map[string][]byte)}
}

func (s *stubPhotoStore) Save(_ context.Context, prefix, _ string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, _ := io.ReadAll(r)
	s.n++
	key := prefix + "_" + strings.Repeat("x", s.n) + ".jpg"
	s.saved[key] = data
	return key, nil
}

func (s *stubPhotoStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.saved[key]
	if !ok {
		return nil, "", photostore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (s *stubPhotoStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, key)
	return nil
}

func (s *stubPhotoStore) keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.saved {
		if strings.HasPrefix(k, prefix+"_") {
			out = append(out, k)
		}
	}
	return out
}

type failingLock struct{}

func (failingLock) Acquire(context.Context) error { return scanlock.ErrTimeout }
func (failingLock) Release() error                { return nil }

type testEnv struct {
	db       *sql.DB
	catalog  *store.Catalog
	analyzer *stubAnalyzer
	photos   *stubPhotoStore
	scans    *ScanService
	inv      *InventoryService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	env := &testEnv{
		db:       d,
		catalog:  store.NewCatalog(d),
		analyzer: &stubAnalyzer{result: &vision.SceneResult{}},
		photos:   newStubPhotoStore(),
	}
	env.scans = NewScanService(env.catalog, env.analyzer, env.photos, nil, testLogger())
	env.inv = NewInventoryService(env.catalog, env.photos, testLogger())
	return env
}

func (e *testEnv) detect(objects ...vision.Detection) {
	e.analyzer.result = &vision.SceneResult{Objects: objects}
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func box(l, t, r, b int) *vision.BoundingBox {
	return &vision.BoundingBox{Left: l, Top: t, Right: r, Bottom: b}
}

func kitchenScene() []vision.Detection {
	return []vision.Detection{
		{Label: "Kitchen", IsContainer: true, Box: box(0, 0, 100, 100)},
		{Label: "Drawer", IsContainer: true, ParentLabel: "Kitchen", Box: box(10, 10, 60, 60)},
		{Label: "Spoon", ParentLabel: "Drawer", Quantity: 3, Box: box(20, 20, 30, 30)},
	}
}

func countRows(t *testing.T, d *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestScanStoresHierarchyAndItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.detect(kitchenScene()...)

	report, err := env.scans.Scan(ctx, ScanRequest{Image: testImage(t), MimeType: "image/png"})
	require.NoError(t, err)

	assert.False(t, report.Empty)
	assert.Equal(t, 3, report.Detections)
	assert.NotEmpty(t, report.PhotoRef)
	require.NotNil(t, report.Root)
	assert.Equal(t, "Kitchen", report.Root.Name)
	assert.Len(t, report.Created, 2)
	assert.Empty(t, report.Reused)
	assert.Empty(t, report.Unresolved)

	drawer, err := env.catalog.Locations.FindChild(ctx, &report.Root.ID, "drawer")
	require.NoError(t, err)
	require.NotNil(t, drawer)
	assert.Equal(t, domain.KindStorage, drawer.Kind)
	assert.NotEmpty(t, drawer.PhotoRef)

	items, err := env.catalog.ItemsForLocation(ctx, drawer.ID)
	require.NoError(t, err)
	var names []string
	for _, it := range items {
		names = append(names, it.Name)
		assert.NotEmpty(t, it.PhotoRef)
	}
	assert.Equal(t, []string{"Spoon #1", "Spoon #2", "Spoon #3"}, names)

	// One crop for the spoon detection, shared by its copies.
	assert.Len(t, env.photos.keys(photostore.PrefixItem), 1)
	assert.Len(t, env.photos.keys(photostore.PrefixLocation), 2)
	assert.Len(t, env.photos.keys(photostore.PrefixScan), 1)
}

func TestScanRescanReusesLocations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.detect(
		vision.Detection{Label: "Kitchen", IsContainer: true},
		vision.Detection{Label: "Cupboard", IsContainer: true, ParentLabel: "Kitchen"},
		vision.Detection{Label: "Mug", ParentLabel: "Cupboard"},
	)

	first, err := env.scans.Scan(ctx, ScanRequest{Image: testImage(t)})
	require.NoError(t, err)
	second, err := env.scans.Scan(ctx, ScanRequest{Image: testImage(t)})
	require.NoError(t, err)

	assert.Equal(t, first.Root.ID, second.Root.ID)
	assert.Empty(t, second.Created)
	assert.Len(t, second.Reused, 2)
	assert.Equal(t, 2, countRows(t, env.db, "locations"))

	require.Len(t, first.Items, 1)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Mug", first.Items[0].Item.Name)
	assert.Equal(t, "Mug (2)", second.Items[0].Item.Name)
	assert.Equal(t, first.Items[0].LocationID, second.Items[0].LocationID)
}

func TestScanRoomOverride(t *testing.T) {
	env := newTestEnv(t)
	env.detect(vision.Detection{Label: "Shelf", IsContainer: true}, vision.Detection{Label: "Book", ParentLabel: "Shelf"})

	report, err := env.scans.Scan(context.Background(), ScanRequest{Image: testImage(t), Room: "Study"})
	require.NoError(t, err)
	assert.Equal(t, "Study", report.Root.Name)
	assert.Equal(t, []string{"Study"}, env.analyzer.hints)
}

func TestScanEmptyResultWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.scans.Scan(context.Background(), ScanRequest{Image: testImage(t)})
	require.NoError(t, err)
	assert.True(t, report.Empty)
	assert.Zero(t, countRows(t, env.db, "locations"))
	assert.Empty(t, env.photos.saved)
}

func TestScanRejectsEmptyImage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.scans.Scan(context.Background(), ScanRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, env.analyzer.hints)
}

func TestScanRecognitionErrors(t *testing.T) {
	tests := []struct {
		name     string
		analyzer *stubAnalyzer
	}{
		{"adapter error", &stubAnalyzer{err: errors.New("connection refused")}},
		{"model error", &stubAnalyzer{result: &vision.SceneResult{Error: "image too dark"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			svc := NewScanService(env.catalog, tt.analyzer, env.photos, nil, testLogger())

			_, err := svc.Scan(context.Background(), ScanRequest{Image: testImage(t)})
			assert.ErrorIs(t, err, ErrRecognitionUnavailable)
			assert.Zero(t, countRows(t, env.db, "locations"))
			assert.Empty(t, env.photos.saved)
		})
	}
}

func TestScanRollsBackOnStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.db.Exec(`
		CREATE TRIGGER reject_poison BEFORE INSERT ON items
		WHEN NEW.name = 'Poison'
		BEGIN SELECT RAISE(ABORT, 'poisoned'); END
	`)
	require.NoError(t, err)

	env.detect(
		vision.Detection{Label: "Garage", IsContainer: true, Box: box(0, 0, 100, 100)},
		vision.Detection{Label: "Shelf", IsContainer: true, ParentLabel: "Garage", Box: box(0, 0, 50, 50)},
		vision.Detection{Label: "Hammer", ParentLabel: "Shelf", Box: box(5, 5, 15, 15)},
		vision.Detection{Label: "Poison", ParentLabel: "Shelf", Box: box(20, 20, 30, 30)},
	)

	_, err = env.scans.Scan(ctx, ScanRequest{Image: testImage(t), MimeType: "image/png"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)

	assert.Zero(t, countRows(t, env.db, "locations"))
	assert.Zero(t, countRows(t, env.db, "items"))
	assert.Zero(t, countRows(t, env.db, "item_placements"))
	assert.Empty(t, env.photos.saved)
}

func TestScanContinuesWhenPhotoSaveFails(t *testing.T) {
	env := newTestEnv(t)
	env.photos.saveErr = errors.New("disk full")
	env.detect(kitchenScene()...)

	report, err := env.scans.Scan(context.Background(), ScanRequest{Image: testImage(t)})
	require.NoError(t, err)
	assert.Empty(t, report.PhotoRef)
	assert.Len(t, report.Items, 3)
	for _, it := range report.Items {
		assert.Empty(t, it.Item.PhotoRef)
	}
}

func TestScanUndecodableImageSkipsCrops(t *testing.T) {
	env := newTestEnv(t)
	env.detect(kitchenScene()...)

	report, err := env.scans.Scan(context.Background(), ScanRequest{Image: []byte{0xFF, 0xD8}, MimeType: "image/jpeg"})
	require.NoError(t, err)
	assert.Len(t, report.Items, 3)
	assert.Empty(t, env.photos.keys(photostore.PrefixItem))
	assert.Len(t, env.photos.keys(photostore.PrefixScan), 1)
}

func TestScanWithFileLock(t *testing.T) {
	env := newTestEnv(t)
	lock := scanlock.New(filepath.Join(t.TempDir(), "scan.lock"))
	svc := NewScanService(env.catalog, env.analyzer, env.photos, lock, testLogger())
	env.detect(kitchenScene()...)

	_, err := svc.Scan(context.Background(), ScanRequest{Image: testImage(t)})
	require.NoError(t, err)

	// The lock is free again after the scan.
	other := scanlock.New(lock.Path())
	require.NoError(t, other.Acquire(context.Background()))
	require.NoError(t, other.Release())
}

func TestScanLockUnavailable(t *testing.T) {
	env := newTestEnv(t)
	svc := NewScanService(env.catalog, env.analyzer, env.photos, failingLock{}, testLogger())
	env.detect(kitchenScene()...)

	_, err := svc.Scan(context.Background(), ScanRequest{Image: testImage(t)})
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.ErrorIs(t, err, scanlock.ErrTimeout)
	assert.Zero(t, countRows(t, env.db, "locations"))
}

func TestScansAreSerialized(t *testing.T) {
	env := newTestEnv(t)
	env.detect(
		vision.Detection{Label: "Kitchen", IsContainer: true},
		vision.Detection{Label: "Mug", ParentLabel: "Kitchen"},
	)
	img := testImage(t)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.scans.Scan(context.Background(), ScanRequest{Image: img})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, countRows(t, env.db, "locations"))
	names, err := env.catalog.ItemNames(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Mug", "Mug (2)", "Mug (3)", "Mug (4)"}, names)
}

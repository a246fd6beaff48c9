package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/imaging"
	"github.com/vbonduro/placemate/internal/photostore"
	"github.com/vbonduro/placemate/internal/reconcile"
	"github.com/vbonduro/placemate/internal/store"
	"github.com/vbonduro/placemate/internal/vision"
)

// scanLock serializes scans across processes. *scanlock.Lock satisfies it.
type scanLock interface {
	Acquire(ctx context.Context) error
	Release() error
}

type ScanService struct {
	catalog    *store.Catalog
	analyzer   vision.SceneAnalyzer
	photos     photostore.PhotoStore
	resolver   *reconcile.Resolver
	reconciler *reconcile.Reconciler
	lock       scanLock
	logger     *slog.Logger

	mu sync.Mutex
}

// NewScanService wires a scan pipeline. lock may be nil when only one
// process writes to the catalog.
func NewScanService(
	catalog *store.Catalog,
	analyzer vision.SceneAnalyzer,
	photos photostore.PhotoStore,
	lock scanLock,
	logger *slog.Logger,
) *ScanService {
	return &ScanService{
		catalog:    catalog,
		analyzer:   analyzer,
		photos:     photos,
		resolver:   reconcile.NewResolver(logger),
		reconciler: reconcile.NewReconciler(logger),
		lock:       lock,
		logger:     logger,
	}
}

type ScanRequest struct {
	Image    []byte
	MimeType string
	// Hint describes where the photo was taken. It is passed to the model.
	Hint string
	// Room, when set, is used as the root instead of the detected room.
	Room string
}

type ScannedItem struct {
	Item       *domain.Item `json:"item"`
	LocationID string       `json:"location_id"`
}

type ScanReport struct {
	// Empty is set when the model saw nothing. No location or item was
	// written; the caller may offer to create a room manually.
	Empty      bool                   `json:"empty"`
	Detections int                    `json:"detections"`
	PhotoRef   string                 `json:"photo_ref,omitempty"`
	Root       *domain.Location       `json:"root,omitempty"`
	Created    []*domain.Location     `json:"created_locations"`
	Reused     []*domain.Location     `json:"reused_locations"`
	Items      []ScannedItem          `json:"items"`
	Unresolved []reconcile.Unresolved `json:"unresolved,omitempty"`
}

func (s *ScanService) recognize(ctx context.Context, image []byte, mimeType, hint string) (*vision.SceneResult, error) {
	s.logger.Info("scene recognition started", "mime_type", mimeType, "bytes", len(image), "hint", hint)
	result, err := s.analyzer.RecognizeScene(ctx, bytes.NewReader(image), mimeType, hint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRecognitionUnavailable, result.Error)
	}
	s.logger.Info("scene recognition complete", "objects", len(result.Objects))
	return result, nil
}

// Scan recognizes the photo and merges the detections into the catalog in a
// single transaction. On any catalog error nothing from the scan is kept.
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*ScanReport, error) {
	if len(req.Image) == 0 {
		return nil, invalid("image is empty")
	}
	hint := strings.TrimSpace(req.Hint)
	if hint == "" {
		hint = strings.TrimSpace(req.Room)
	}

	result, err := s.recognize(ctx, req.Image, req.MimeType, hint)
	if err != nil {
		return nil, err
	}
	if len(result.Objects) == 0 {
		s.logger.Info("scan found nothing, catalog unchanged")
		return &ScanReport{Empty: true}, nil
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &ScanReport{Detections: len(result.Objects)}

	photoRef, err := s.photos.Save(ctx, photostore.PrefixScan, req.MimeType, bytes.NewReader(req.Image))
	if err != nil {
		s.logger.Warn("failed to save scan photo", "error", err)
	} else {
		report.PhotoRef = photoRef
	}

	var itemCropper, locationCropper reconcile.Cropper
	cropper, err := imaging.NewCropper(req.Image, s.photos, photostore.PrefixItem, s.logger)
	if err != nil {
		s.logger.Warn("image cannot be cropped, photos skipped", "error", err)
	} else {
		itemCropper = cropper
		locationCropper = cropper.WithPrefix(photostore.PrefixLocation)
	}

	err = s.catalog.WithTx(ctx, func(tx *store.Catalog) error {
		existing, err := tx.ListLocations(ctx)
		if err != nil {
			return err
		}
		names, err := tx.ItemNames(ctx)
		if err != nil {
			return err
		}

		res, err := s.resolver.Resolve(ctx, result.Objects, existing, tx, reconcile.ResolveOptions{
			Room:    req.Room,
			Cropper: locationCropper,
		})
		if err != nil {
			return err
		}

		writes := s.reconciler.Reconcile(ctx, result.Objects, res, reconcile.NewNameSet(names), itemCropper)
		for _, w := range writes {
			if err := tx.SaveItem(ctx, w.Item, w.LocationID); err != nil {
				return err
			}
			report.Items = append(report.Items, ScannedItem{Item: w.Item, LocationID: w.LocationID})
		}

		report.Root = res.Root
		report.Created = res.Created
		report.Reused = res.Reused
		report.Unresolved = res.Unresolved
		return nil
	})
	if err != nil {
		s.discard(ctx, cropper, report.PhotoRef)
		s.logger.Error("scan rolled back", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	s.logger.Info("scan complete",
		"root", report.Root.Name,
		"locations_created", len(report.Created),
		"locations_reused", len(report.Reused),
		"items", len(report.Items),
		"unresolved", len(report.Unresolved),
	)
	return report, nil
}

func (s *ScanService) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.lock == nil {
		return s.mu.Unlock, nil
	}
	if err := s.lock.Acquire(ctx); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Error("failed to release scan lock", "error", err)
		}
		s.mu.Unlock()
	}, nil
}

// discard removes the photos stored by a scan that was rolled back.
func (s *ScanService) discard(ctx context.Context, cropper *imaging.Cropper, photoRef string) {
	ctx = context.WithoutCancel(ctx)
	if cropper != nil {
		cropper.Discard(ctx)
	}
	if photoRef != "" {
		if err := s.photos.Delete(ctx, photoRef); err != nil {
			s.logger.Warn("failed to delete scan photo", "key", photoRef, "error", err)
		}
	}
}

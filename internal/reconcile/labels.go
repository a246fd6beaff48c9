// Package reconcile merges a batch of scene detections into the persisted
// location hierarchy and item catalog.
//
// Labels are compared by key: the synonym-normalized, lowercased label. All
// merge-or-create decisions use keys, so "Kitchenette", "kitchen" and
// "KITCHEN" resolve to the same location.
package reconcile

import (
	"context"

	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/synonym"
	"github.com/vbonduro/placemate/internal/vision"
)

// LocationAdder persists a new location. It is the Catalog Store's
// addLocation operation; an error from it aborts the scan.
type LocationAdder interface {
	AddLocation(ctx context.Context, name string, kind domain.LocationKind, parentID *string, photoRef string) (*domain.Location, error)
}

// Cropper stores the region of the scanned image inside box and returns a
// photo reference. Errors are never fatal to reconciliation.
type Cropper interface {
	CropAndSave(ctx context.Context, box vision.BoundingBox) (string, error)
}

// entry is a detection with its derived keys.
type entry struct {
	index     int
	det       vision.Detection
	key       string
	display   string
	parentKey string
}

// Key returns the comparison key for a label.
func Key(label string) string {
	return synonym.Normalize(label)
}

func prepare(detections []vision.Detection) []entry {
	entries := make([]entry, 0, len(detections))
	for i, det := range detections {
		key := Key(det.Label)
		if key == "" {
			continue
		}
		entries = append(entries, entry{
			index:     i,
			det:       det,
			key:       key,
			display:   synonym.Display(det.Label),
			parentKey: Key(det.ParentLabel),
		})
	}
	return entries
}

// validBox returns the entry's box when present and well formed.
func (e *entry) validBox() (vision.BoundingBox, bool) {
	if e.det.Box == nil || !e.det.Box.Valid() {
		return vision.BoundingBox{}, false
	}
	return *e.det.Box, true
}

// hasMalformedBox reports a box that is present but unusable.
func (e *entry) hasMalformedBox() bool {
	return e.det.Box != nil && !e.det.Box.Valid()
}

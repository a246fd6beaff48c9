package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/placemate/internal/category"
	"github.com/vbonduro/placemate/internal/domain"
	"github.com/vbonduro/placemate/internal/vision"
)

// ItemWrite is one item to persist with the location it is placed at.
type ItemWrite struct {
	Item       *domain.Item
	LocationID string
}

type Reconciler struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Reconcile turns the non-container detections of a batch into item writes
// placed inside res. names is seeded with the catalog's item names and is
// updated with every name assigned here. cropper may be nil.
func (r *Reconciler) Reconcile(ctx context.Context, detections []vision.Detection, res *Resolution, names *NameSet, cropper Cropper) []ItemWrite {
	entries := prepare(detections)
	if len(entries) == 0 {
		return nil
	}

	boxes := containerBoxes(entries, res)

	var writes []ItemWrite
	for i := range entries {
		e := &entries[i]
		if e.det.IsContainer || e.key == res.RootKey {
			continue
		}
		if e.hasMalformedBox() {
			r.logger.Warn("ignoring malformed bounding box", "label", e.det.Label, "box", *e.det.Box)
		}

		target := r.target(e, res, boxes)

		var photoRef string
		if cropper != nil {
			if box, ok := e.validBox(); ok {
				ref, err := cropper.CropAndSave(ctx, box)
				if err != nil {
					r.logger.Warn("failed to crop item photo", "label", e.det.Label, "error", err)
				} else {
					photoRef = ref
				}
			}
		}

		cat := category.MapToCategory(e.key)
		qty := e.det.Quantity
		if qty < 1 {
			qty = 1
		}
		for n := 1; n <= qty; n++ {
			candidate := e.display
			if qty > 1 {
				candidate = fmt.Sprintf("%s #%d", e.display, n)
			}
			now := r.now()
			item := &domain.Item{
				ID:        r.newID(),
				Name:      names.Claim(candidate),
				Category:  cat,
				PhotoRef:  photoRef,
				Status:    domain.StatusPresent,
				CreatedAt: now,
				UpdatedAt: now,
			}
			writes = append(writes, ItemWrite{Item: item, LocationID: target.ID})
		}
	}
	return writes
}

type containerBox struct {
	key  string
	box  vision.BoundingBox
	area int64
	loc  *domain.Location
}

// containerBoxes lists the resolved containers that have a usable box, in
// input order. The root is never a spatial candidate.
func containerBoxes(entries []entry, res *Resolution) []containerBox {
	var out []containerBox
	seen := make(map[string]bool)
	for i := range entries {
		e := &entries[i]
		if !e.det.IsContainer || e.key == res.RootKey || seen[e.key] {
			continue
		}
		box, ok := e.validBox()
		if !ok {
			continue
		}
		loc, ok := res.Containers[e.key]
		if !ok {
			continue
		}
		seen[e.key] = true
		out = append(out, containerBox{key: e.key, box: box, area: box.Area(), loc: loc})
	}
	return out
}

// target applies, in order: the declared parent, the smallest container box
// enclosing the item's center, then the root.
func (r *Reconciler) target(e *entry, res *Resolution, boxes []containerBox) *domain.Location {
	if e.parentKey != "" {
		if loc, ok := res.Lookup(e.parentKey); ok {
			return loc
		}
		r.logger.Debug("declared parent not in batch, trying spatial fallback",
			"label", e.det.Label, "parent_label", e.det.ParentLabel)
	}

	if box, ok := e.validBox(); ok {
		cx, cy := box.Center()
		var best *containerBox
		for i := range boxes {
			c := &boxes[i]
			if !c.box.Contains(cx, cy) {
				continue
			}
			if best == nil || c.area < best.area {
				best = c
			}
		}
		if best != nil {
			return best.loc
		}
	}

	return res.Root
}

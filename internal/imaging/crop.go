// Package imaging cuts detection regions out of a scanned photo and stores
// them as thumbnails.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/vbonduro/placemate/internal/photostore"
	"github.com/vbonduro/placemate/internal/vision"
)

const (
	jpegQuality = 90
	// maxEdge bounds the longer side of a stored crop.
	maxEdge = 1024
)

var ErrEmptyRegion = errors.New("crop region is empty")

// Cropper crops regions of one decoded image. Each crop is stored under
// prefix and its key is remembered so a failed scan can discard them all.
type Cropper struct {
	img    image.Image
	store  photostore.PhotoStore
	prefix string
	logger *slog.Logger
	saved  *ledger
}

// ledger is shared by a Cropper and every copy made with WithPrefix.
type ledger struct {
	mu   sync.Mutex
	keys []string
}

// NewCropper decodes data. It fails for formats other than JPEG, PNG, GIF
// and WebP.
func NewCropper(data []byte, store photostore.PhotoStore, prefix string, logger *slog.Logger) (*Cropper, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &Cropper{img: img, store: store, prefix: prefix, logger: logger, saved: &ledger{}}, nil
}

// WithPrefix returns a Cropper over the same image that stores under prefix.
// Both share one record of saved crops.
func (c *Cropper) WithPrefix(prefix string) *Cropper {
	cp := *c
	cp.prefix = prefix
	return &cp
}

func (c *Cropper) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// CropAndSave stores the part of the image inside box, clamped to the image
// bounds, as a JPEG.
func (c *Cropper) CropAndSave(ctx context.Context, box vision.BoundingBox) (string, error) {
	cropped, err := c.Crop(box)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}

	key, err := c.store.Save(ctx, c.prefix, "image/jpeg", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to save crop: %w", err)
	}

	c.saved.mu.Lock()
	c.saved.keys = append(c.saved.keys, key)
	c.saved.mu.Unlock()
	return key, nil
}

// Crop returns the region of the image inside box, downscaled so its longer
// edge is at most maxEdge.
func (c *Cropper) Crop(box vision.BoundingBox) (image.Image, error) {
	b := c.img.Bounds()
	rect := image.Rect(b.Min.X+box.Left, b.Min.Y+box.Top, b.Min.X+box.Right, b.Min.Y+box.Bottom).Intersect(b)
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}

	w, h := rect.Dx(), rect.Dy()
	cropped := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(cropped, cropped.Bounds(), c.img, rect.Min, draw.Src)

	if w <= maxEdge && h <= maxEdge {
		return cropped, nil
	}
	scale := float64(maxEdge) / float64(max(w, h))
	dw, dh := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)
	return dst, nil
}

// Saved returns the keys of every crop stored so far.
func (c *Cropper) Saved() []string {
	c.saved.mu.Lock()
	defer c.saved.mu.Unlock()
	out := make([]string, len(c.saved.keys))
	copy(out, c.saved.keys)
	return out
}

// Discard deletes every stored crop. Failures are logged.
func (c *Cropper) Discard(ctx context.Context) {
	for _, key := range c.Saved() {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to delete crop", "key", key, "error", err)
		}
	}
	c.saved.mu.Lock()
	c.saved.keys = nil
	c.saved.mu.Unlock()
}

// Package photostore stores scan photos and cropped thumbnails by key.
package photostore

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("photo not found")

// Prefixes group stored photos by what they show.
const (
	PrefixScan     = "scan"
	PrefixLocation = "location"
	PrefixItem     = "item"
)

type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

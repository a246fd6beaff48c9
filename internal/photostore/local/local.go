// Package local stores photos as flat files in one directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/vbonduro/placemate/internal/photostore"
)

// extensions maps accepted MIME types to file extensions. Anything else is
// written as JPEG, which is what the cropper produces.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store keys photos by file name, e.g. "item_<uuid>.jpg".
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes r to a temporary file and renames it into place, so a failed
// or partial write never leaves a readable key behind.
func (s *Store) Save(ctx context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, ok := extensions[mimeType]
	if !ok {
		ext = ".jpg"
	}
	key := prefix + "_" + uuid.NewString() + ext

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}
	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), filepath.Join(s.dir, key))
	}
	if err != nil {
		if rerr := os.Remove(tmp.Name()); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			slog.Warn("failed to remove partial photo", "path", tmp.Name(), "error", rerr)
		}
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	return key, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", photostore.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}
	return f, mimeTypeOf(key), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return photostore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// path rejects keys that are not a plain file name, which rules out
// traversal and the hidden temporary files.
func (s *Store) path(key string) (string, error) {
	if key == "" || !filepath.IsLocal(key) || filepath.Base(key) != key || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid photo key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func mimeTypeOf(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	for mimeType, e := range extensions {
		if e == ext {
			return mimeType
		}
	}
	return "image/jpeg"
}

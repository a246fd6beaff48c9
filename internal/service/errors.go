package service

import (
	"errors"
	"fmt"

	"github.com/vbonduro/placemate/internal/store"
)

var (
	// ErrRecognitionUnavailable means the recognition backend failed or
	// reported an error. Nothing was written.
	ErrRecognitionUnavailable = errors.New("recognition unavailable")
	// ErrCatalogUnavailable means a catalog write failed and the whole scan
	// was rolled back.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	ErrNotFound         = errors.New("not found")
	ErrNameTaken        = errors.New("name already taken")
	ErrLocationCycle    = errors.New("location cannot be moved into its own subtree")
	ErrLocationNotEmpty = errors.New("location is not empty")
	ErrInvalidInput     = errors.New("invalid input")
)

// storeErr maps store sentinels onto the service ones.
func storeErr(action string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("failed to %s: %w", action, ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("failed to %s: %w", action, ErrNameTaken)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable means the store directory or a record file could
	// not be created, read or written. Fatal for the current operation.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCorruptRecord means a stored file could not be decoded as an
	// embedding of the expected dimensionality.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrNotFound means a listed record vanished before it could be loaded.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidName is returned for display names that cannot be encoded in a filename.
	ErrInvalidName = errors.New("invalid display name")

	// ErrInvalidEmbedding is returned when appending an empty vector or one
	// whose dimensionality differs from the store's.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op   string // Operation name
	Path string // File or directory involved, may be empty
	Err  error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("identity: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("identity: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrapError(op, path string, kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return &StoreError{Op: op, Path: path, Err: err}
	}
	return &StoreError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", kind, err)}
}

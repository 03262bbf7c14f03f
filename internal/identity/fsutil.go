package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const tempPrefix = ".tmp-"

// runIO runs fn and gives up waiting once ctx expires. A stalled filesystem
// call keeps its goroutine until the kernel returns, but the caller is freed.
func runIO[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrStorageUnavailable, ctx.Err())
	}
}

// writeFileAtomic writes data to dir/name so that readers either see the
// complete file or nothing. It refuses to replace an existing file.
func writeFileAtomic(dir, name string, data []byte) error {
	target := filepath.Join(dir, name)

	// Write to a temp file in the same directory so the link stays on one filesystem.
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Link fails if target exists, unlike Rename. The deferred Remove drops
	// the temp name afterwards.
	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", name, os.ErrExist)
		}
		return fmt.Errorf("failed to link temp file: %w", err)
	}

	// Best-effort: fsync the directory so the new entry is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/logging"
)

// maxIDAttempts bounds id regeneration when a freshly generated filename already exists.
const maxIDAttempts = 3

// Options configures a Repository.
type Options struct {
	// Dim is the expected embedding dimensionality. Zero means the first
	// record appended decides it; reads take it from the caller until then.
	Dim int
	// IOTimeout bounds each filesystem call. Zero uses constants.DefaultIOTimeout.
	IOTimeout time.Duration
	// Logger receives warnings about skipped files. Nil discards them.
	Logger *slog.Logger
}

// Repository is an append-only store of identity records, one file per
// record, in a single directory.
//
// Nothing coordinates separate processes: two processes enrolling at the
// same time get distinct ids, and each sees the directory as of its own scan.
type Repository struct {
	root      string
	ioTimeout time.Duration
	logger    *slog.Logger

	mu  sync.Mutex
	dim int
}

// New creates a repository rooted at dir. Nothing is touched on disk until
// EnsureInitialized or Append is called.
func New(dir string, opts Options) *Repository {
	if dir == "" {
		dir = constants.DefaultStoreDir
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = constants.DefaultIOTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Repository{
		root:      dir,
		ioTimeout: opts.IOTimeout,
		logger:    opts.Logger.With("store", dir),
		dim:       opts.Dim,
	}
}

// Dim returns the pinned embedding dimensionality, or 0 if not yet known.
func (r *Repository) Dim() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dim
}

func (r *Repository) pinDim(dim int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dim == 0 {
		r.dim = dim
		return nil
	}
	if r.dim != dim {
		return fmt.Errorf("dimension %d, store uses %d", dim, r.dim)
	}
	return nil
}

// EnsureInitialized creates the store directory if it is missing. created
// reports whether this call made it. Calling it again is a no-op.
func (r *Repository) EnsureInitialized(ctx context.Context) (created bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()

	created, err = runIO(ctx, func() (bool, error) {
		info, err := os.Stat(r.root)
		if err == nil {
			if !info.IsDir() {
				return false, fmt.Errorf("%s exists and is not a directory", r.root)
			}
			return false, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		if err := os.MkdirAll(r.root, 0o750); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, wrapError("init", r.root, ErrStorageUnavailable, err)
	}
	if created {
		r.logger.Info("created identity store")
	}
	return created, nil
}

// List enumerates the records in directory order. Only filenames are read.
// Entries that are not record files are skipped with a warning.
func (r *Repository) List(ctx context.Context) ([]Ref, error) {
	ctx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()

	entries, err := runIO(ctx, func() ([]os.DirEntry, error) {
		return os.ReadDir(r.root)
	})
	if err != nil {
		return nil, wrapError("list", r.root, ErrStorageUnavailable, err)
	}

	refs := make([]Ref, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ref, err := ParseFilename(name)
		if err != nil {
			r.logger.Warn("ignoring unrecognized file", "file", name, "error", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Load reads and decodes the embedding of one record. dim is the
// dimensionality the caller expects, usually that of the query; 0 accepts
// whatever the store is pinned to. A record of any other dimensionality is
// ErrCorruptRecord. Load never pins the dimensionality itself, so a stray
// record cannot decide it for the records that follow.
func (r *Repository) Load(ctx context.Context, ref Ref, dim int) ([]float32, error) {
	want, err := r.expectedDim(dim)
	if err != nil {
		return nil, &StoreError{Op: "load", Path: ref.Filename, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()

	path := filepath.Join(r.root, ref.Filename)
	data, err := runIO(ctx, func() ([]byte, error) {
		return os.ReadFile(path) //nolint:gosec // path is inside the configured store
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, wrapError("load", ref.Filename, ErrNotFound, err)
	}
	if err != nil {
		return nil, wrapError("load", ref.Filename, ErrStorageUnavailable, err)
	}

	vec, err := DecodeEmbedding(data, want)
	if err != nil {
		return nil, &StoreError{Op: "load", Path: ref.Filename, Err: err}
	}
	return vec, nil
}

// expectedDim reconciles the caller's dimensionality with the pinned one.
func (r *Repository) expectedDim(dim int) (int, error) {
	pinned := r.Dim()
	switch {
	case dim <= 0:
		return pinned, nil
	case pinned != 0 && pinned != dim:
		return 0, fmt.Errorf("%w: dimension %d, store uses %d", ErrInvalidEmbedding, dim, pinned)
	default:
		return dim, nil
	}
}

// LoadAll loads every record of dimensionality dim (see Load). Corrupt or
// vanished records are returned in skipped instead of failing the call.
func (r *Repository) LoadAll(ctx context.Context, dim int) (records []Record, skipped []Skip, err error) {
	refs, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, ref := range refs {
		vec, err := r.Load(ctx, ref, dim)
		switch {
		case err == nil:
			records = append(records, Record{Ref: ref, Embedding: vec})
		case errors.Is(err, ErrCorruptRecord), errors.Is(err, ErrNotFound):
			r.logger.Warn("skipping record", "file", ref.Filename, "error", err)
			skipped = append(skipped, Skip{Ref: ref, Err: err})
		default:
			return nil, nil, err
		}
	}
	return records, skipped, nil
}

// Append stores embedding under a newly generated id and returns its
// reference. The first append pins the dimensionality when none was
// configured.
//
// If the I/O timeout expires while the file is being written, Append returns
// ErrStorageUnavailable but the write goroutine carries on. The record may
// then still appear in the store, complete, after Append has returned.
func (r *Repository) Append(ctx context.Context, embedding []float32, displayName string) (Ref, error) {
	if len(embedding) == 0 {
		return Ref{}, &StoreError{Op: "append", Err: fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)}
	}
	if dim := r.Dim(); dim != 0 && dim != len(embedding) {
		return Ref{}, &StoreError{Op: "append", Err: fmt.Errorf("%w: dimension %d, store uses %d", ErrInvalidEmbedding, len(embedding), dim)}
	}
	if _, err := EncodeDisplayName(displayName); err != nil {
		return Ref{}, &StoreError{Op: "append", Err: err}
	}
	data, err := EncodeEmbedding(embedding)
	if err != nil {
		return Ref{}, &StoreError{Op: "append", Err: err}
	}

	if _, err := r.EnsureInitialized(ctx); err != nil {
		return Ref{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := NewID()
		if err != nil {
			return Ref{}, wrapError("append", "", ErrStorageUnavailable, err)
		}
		filename, err := ComposeFilename(id, displayName)
		if err != nil {
			return Ref{}, &StoreError{Op: "append", Err: err}
		}

		_, err = runIO(ctx, func() (struct{}, error) {
			return struct{}{}, writeFileAtomic(r.root, filename, data)
		})
		if errors.Is(err, os.ErrExist) {
			r.logger.Warn("id collision, regenerating", "file", filename)
			continue
		}
		if err != nil {
			return Ref{}, wrapError("append", filename, ErrStorageUnavailable, err)
		}

		if err := r.pinDim(len(embedding)); err != nil {
			return Ref{}, wrapError("append", filename, ErrInvalidEmbedding, err)
		}
		r.logger.Debug("record appended", "file", filename, "dim", len(embedding))
		ref, err := ParseFilename(filename)
		if err != nil {
			return Ref{}, &StoreError{Op: "append", Path: filename, Err: err}
		}
		return ref, nil
	}
	return Ref{}, wrapError("append", "", ErrStorageUnavailable, fmt.Errorf("no free id after %d attempts", maxIDAttempts))
}

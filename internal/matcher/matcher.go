// Package matcher decides whether a face embedding belongs to an enrolled
// identity. It walks the store in listing order and asks an injected
// predicate about each record; it never computes a distance itself.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/faceauth/internal/identity"
	"github.com/kozaktomas/faceauth/internal/logging"
)

// ErrEmptyQuery is returned when the query embedding has no values.
var ErrEmptyQuery = errors.New("empty query embedding")

// Predicate reports whether two embeddings belong to the same person.
type Predicate interface {
	Match(query, stored []float32) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(query, stored []float32) bool

// Match calls f.
func (f PredicateFunc) Match(query, stored []float32) bool {
	return f(query, stored)
}

// Store is the subset of the identity repository the matcher needs.
type Store interface {
	EnsureInitialized(ctx context.Context) (created bool, err error)
	List(ctx context.Context) ([]identity.Ref, error)
	Load(ctx context.Context, ref identity.Ref, dim int) ([]float32, error)
	Append(ctx context.Context, embedding []float32, displayName string) (identity.Ref, error)
}

// Status is the terminal state of an authentication attempt.
type Status string

const (
	StatusMatched  Status = "matched"
	StatusNoMatch  Status = "no_match"
	StatusEnrolled Status = "enrolled"
)

// Warning is a record skipped during a scan.
type Warning = identity.Skip

// Result is the outcome of Authenticate, Enroll or AuthenticateOrEnroll.
type Result struct {
	Status Status
	// Ref is the matched or newly enrolled identity; nil on NoMatch.
	Ref *identity.Ref
	// Scanned counts records whose embedding was compared.
	Scanned int
	// Warnings lists records that could not be loaded.
	Warnings []Warning
}

// Matcher compares query embeddings against a Store.
type Matcher struct {
	store     Store
	predicate Predicate
	logger    *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger used for scan warnings.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Matcher.
func New(store Store, predicate Predicate, opts ...Option) *Matcher {
	m := &Matcher{
		store:     store,
		predicate: predicate,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticate returns the first stored identity, in listing order, that the
// predicate accepts. When several would match, which one wins is unspecified.
// Records that are corrupt, vanished, or of another dimensionality than the
// query are skipped and reported in Warnings.
func (m *Matcher) Authenticate(ctx context.Context, query []float32) (*Result, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}

	created, err := m.store.EnsureInitialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	result := &Result{Status: StatusNoMatch}
	if created {
		m.logger.Debug("store was just created, nothing to match")
		return result, nil
	}

	refs, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	for _, ref := range refs {
		stored, err := m.store.Load(ctx, ref, len(query))
		if err != nil {
			if errors.Is(err, identity.ErrCorruptRecord) || errors.Is(err, identity.ErrNotFound) {
				m.logger.Warn("skipping record", "file", ref.Filename, "error", err)
				result.Warnings = append(result.Warnings, Warning{Ref: ref, Err: err})
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", ref.Filename, err)
		}

		result.Scanned++
		if m.predicate.Match(query, stored) {
			matched := ref
			result.Status = StatusMatched
			result.Ref = &matched
			m.logger.Debug("identity matched", "id", ref.ID.String(), "scanned", result.Scanned)
			return result, nil
		}
	}

	m.logger.Debug("no identity matched", "scanned", result.Scanned, "skipped", len(result.Warnings))
	return result, nil
}

// Enroll stores query as a new identity.
func (m *Matcher) Enroll(ctx context.Context, query []float32, displayName string) (*Result, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	ref, err := m.store.Append(ctx, query, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to enroll: %w", err)
	}
	m.logger.Info("identity enrolled", "id", ref.ID.String(), "name", ref.DisplayName)
	return &Result{Status: StatusEnrolled, Ref: &ref}, nil
}

// EnrollOptions controls AuthenticateOrEnroll.
type EnrollOptions struct {
	// Enroll requests enrollment when no identity matches.
	Enroll bool
	// DisplayName is called only when enrollment happens, so interactive
	// callers prompt only when needed.
	DisplayName func() (string, error)
}

// AuthenticateOrEnroll runs Authenticate and, on NoMatch with Enroll set,
// enrolls the query. Warnings from the scan are kept on the returned result.
func (m *Matcher) AuthenticateOrEnroll(ctx context.Context, query []float32, opts EnrollOptions) (*Result, error) {
	result, err := m.Authenticate(ctx, query)
	if err != nil {
		return nil, err
	}
	if result.Status != StatusNoMatch || !opts.Enroll {
		return result, nil
	}

	var name string
	if opts.DisplayName != nil {
		name, err = opts.DisplayName()
		if err != nil {
			return nil, fmt.Errorf("failed to get display name: %w", err)
		}
	}

	enrolled, err := m.Enroll(ctx, query, name)
	if err != nil {
		return nil, err
	}
	enrolled.Scanned = result.Scanned
	enrolled.Warnings = result.Warnings
	return enrolled, nil
}

// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Store constants
const (
	// DefaultStoreDir is the directory enrolled identities are kept in,
	// relative to the working directory unless configured otherwise
	DefaultStoreDir = "persist"

	// DefaultIOTimeout bounds every single filesystem call made by the store
	DefaultIOTimeout = 10 * time.Second

	// MaxDisplayNameBytes is the longest encoded display name accepted in a filename
	MaxDisplayNameBytes = 200
)

// Face matching constants
const (
	// DefaultMatchMetric is the comparison used to decide if two faces match
	DefaultMatchMetric = "euclidean"

	// DefaultEuclideanTolerance is the maximum L2 distance for two 128-dim
	// face descriptors to be considered the same person.
	// Lower values = stricter matching
	DefaultEuclideanTolerance = 0.6

	// DefaultDistanceThreshold is the default maximum cosine distance for face matching
	DefaultDistanceThreshold = 0.5

	// DefaultNearestLimit is the default number of identities shown by the nearest command
	DefaultNearestLimit = 5
)

// Embedding server constants
const (
	// DefaultEmbeddingURL is where the face embedding server listens by default
	DefaultEmbeddingURL = "http://localhost:8000"

	// DefaultEmbeddingTimeout bounds a single face extraction request
	DefaultEmbeddingTimeout = 60 * time.Second
)

// Image constants
const (
	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1920
)

// Enrollment constants
const (
	// DefaultUsername is the prompt default offered when saving a new user
	DefaultUsername = "Default: No username"
)

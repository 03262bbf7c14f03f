package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ID is the 128-bit random identifier of an enrolled identity.
type ID [16]byte

// NewID returns a fresh random identifier.
func NewID() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return ID{}, fmt.Errorf("failed to generate id: %w", err)
	}
	return ID(u), nil
}

// ParseID parses the 32 lowercase hex digit form produced by ID.String.
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != hex.EncodedLen(len(id)) {
		return ID{}, fmt.Errorf("id %q: want %d hex digits", s, hex.EncodedLen(len(id)))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ID{}, fmt.Errorf("id %q: not lowercase hex", s)
		}
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("id %q: %w", s, err)
	}
	return id, nil
}

// String returns the lowercase hex form without separators.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Ref points at a stored record. It is derived from the filename alone.
type Ref struct {
	ID          ID
	DisplayName string
	Filename    string
}

// Record is an identity together with its embedding.
type Record struct {
	Ref
	Embedding []float32
}

// Skip describes a record that was passed over while reading the store.
type Skip struct {
	Ref Ref
	Err error
}

package identity

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/faceauth/internal/constants"
)

const (
	nameSeparator = "_"
	spaceEscape   = "%"
	defaultPrefix = "Default: "
)

// CleanDisplayName turns user input into a display name: it strips the
// "Default: " marker the enrollment prompt puts in front of its suggested
// value and normalizes to Unicode NFC.
func CleanDisplayName(name string) string {
	return norm.NFC.String(strings.TrimPrefix(name, defaultPrefix))
}

// EncodeDisplayName validates name and returns the form stored in filenames,
// with spaces replaced by '%'. Names must already be in NFC form, so that
// decoding gives back exactly the name that was encoded.
func EncodeDisplayName(name string) (string, error) {
	if !norm.NFC.IsNormalString(name) {
		return "", fmt.Errorf("%w: %q is not in Unicode NFC form", ErrInvalidName, name)
	}
	for _, bad := range []string{nameSeparator, spaceEscape, "/", string(os.PathSeparator), "\x00"} {
		if strings.Contains(name, bad) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, bad)
		}
	}
	encoded := strings.ReplaceAll(name, " ", spaceEscape)
	if len(encoded) > constants.MaxDisplayNameBytes {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, constants.MaxDisplayNameBytes)
	}
	return encoded, nil
}

// DecodeDisplayName reverses EncodeDisplayName.
func DecodeDisplayName(encoded string) string {
	return strings.ReplaceAll(encoded, spaceEscape, " ")
}

// ComposeFilename builds "{id}_{displayName}" for a record.
func ComposeFilename(id ID, displayName string) (string, error) {
	encoded, err := EncodeDisplayName(displayName)
	if err != nil {
		return "", err
	}
	return id.String() + nameSeparator + encoded, nil
}

// ParseFilename splits a record filename on its first '_' and decodes both halves.
func ParseFilename(filename string) (Ref, error) {
	idPart, namePart, ok := strings.Cut(filename, nameSeparator)
	if !ok {
		return Ref{}, fmt.Errorf("filename %q has no %q separator", filename, nameSeparator)
	}
	id, err := ParseID(idPart)
	if err != nil {
		return Ref{}, err
	}
	return Ref{
		ID:          id,
		DisplayName: DecodeDisplayName(namePart),
		Filename:    filename,
	}, nil
}

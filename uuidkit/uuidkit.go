// Package uuidkit normalizes and validates the UUID and name grammars used
// throughout the signal bus and telemetry pipeline (spec §6.4):
//
//   - UUID: canonical 8-4-4-4-12 lowercase hex.
//   - Alphanumeric name: [A-Za-z0-9][A-Za-z0-9_]*
//   - Alphanumeric path: dot-separated alphanumeric names, no leading/
//     trailing dot, no doubled dots.
//
// The normalization approach (trim, strip decoration, lowercase, then
// validate) mirrors the teacher's domain-normalization helper in
// engine/ratelimit/normalize.go.
package uuidkit

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUUID is returned when a string cannot be normalized into a
	// canonical UUID.
	ErrInvalidUUID = errors.New("uuidkit: invalid uuid")
	// ErrInvalidName is returned when a string fails the alphanumeric name
	// grammar.
	ErrInvalidName = errors.New("uuidkit: invalid name")
	// ErrInvalidPath is returned when a string fails the alphanumeric path
	// grammar.
	ErrInvalidPath = errors.New("uuidkit: invalid path")
)

// Normalize trims whitespace, strips surrounding braces, lowercases, and
// validates value as a canonical UUID. Returns ErrInvalidUUID on failure.
func Normalize(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")
	trimmed = strings.ToLower(trimmed)
	if trimmed == "" {
		return "", ErrInvalidUUID
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidUUID
	}
	return parsed.String(), nil
}

// New generates a fresh, canonical, lowercase UUID (v4).
func New() string {
	return uuid.New().String()
}

// IsValidName reports whether value satisfies the alphanumeric name
// grammar: [A-Za-z0-9][A-Za-z0-9_]*
func IsValidName(value string) bool {
	if value == "" {
		return false
	}
	for i, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			continue
		case r == '_' && i > 0:
			continue
		default:
			return false
		}
	}
	return true
}

// ValidateName validates value against the alphanumeric name grammar,
// returning ErrInvalidName on failure.
func ValidateName(value string) error {
	if !IsValidName(value) {
		return ErrInvalidName
	}
	return nil
}

// IsValidPath reports whether value satisfies the alphanumeric path
// grammar: one or more alphanumeric names joined by single dots, no
// leading/trailing dot, no doubled dots.
func IsValidPath(value string) bool {
	if value == "" || strings.HasPrefix(value, ".") || strings.HasSuffix(value, ".") {
		return false
	}
	segments := strings.Split(value, ".")
	for _, seg := range segments {
		if !IsValidName(seg) {
			return false
		}
	}
	return true
}

// ValidatePath validates value against the alphanumeric path grammar,
// returning ErrInvalidPath on failure.
func ValidatePath(value string) error {
	if !IsValidPath(value) {
		return ErrInvalidPath
	}
	return nil
}

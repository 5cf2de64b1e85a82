package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Input validation and sanitization utilities

// MaxImageIDLength bounds path identifiers; longer ids cannot exist in the store.
const MaxImageIDLength = 1024

// ValidateImageID rejects identifiers no stored record can have.
func ValidateImageID(id string) error {
	if id == "" {
		return fmt.Errorf("image ID cannot be empty")
	}
	if len(id) > MaxImageIDLength {
		return fmt.Errorf("image ID longer than %d bytes", MaxImageIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("invalid characters in image ID")
		}
	}
	return nil
}

// ParseLimit reads the limit query parameter. Empty means "use the default" (0);
// anything that is not an integer is an error.
func ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: %w", raw, err)
	}
	return n, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

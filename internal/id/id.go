// Package id generates and checks pipeline run identifiers.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID returns a random run ID.
func NewRunID() string {
	return uuid.NewString()
}

// ParseRunID validates a run ID and returns it in canonical form.
func ParseRunID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid run ID %q: %w", s, err)
	}
	return u.String(), nil
}

// Short returns the first eight characters of a run ID for display.
// "1b4e28ba-2fa1-11d2-883f-0016d3cca427" -> "1b4e28ba"
func Short(runID string) string {
	if len(runID) <= 8 {
		return runID
	}
	return runID[:8]
}

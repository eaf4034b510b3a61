package validation

import "strings"

// Error is returned when a run is refused before any send attempt.
type Error struct {
	Errors   []string
	Warnings []string
}

func (e *Error) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

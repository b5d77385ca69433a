package utils

import (
	"strings"
)

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func NilIfEmpty[T comparable](ptr T) *T {
	var defaultZero T
	if ptr == defaultZero {
		return nil
	}
	return &ptr
}

// AppendNote joins a new line onto existing free-text notes.
func AppendNote(notes *string, note string) *string {
	note = strings.TrimSpace(note)
	if note == "" {
		return notes
	}
	if notes == nil || strings.TrimSpace(*notes) == "" {
		return &note
	}
	joined := *notes + "\n" + note
	return &joined
}

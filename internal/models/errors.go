package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Application-wide standard errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrDraftNotFound  = errors.New("draft not found")
	ErrCourseNotFound = errors.New("course not found")

	ErrGenerationInProgress = errors.New("generation is already in progress for this session")
	ErrSessionClosed        = errors.New("wizard session is closed")
	ErrCourseNotComplete    = errors.New("course data is not marked complete")

	ErrInvalidCursor = errors.New("invalid pagination cursor")
	ErrInternal      = errors.New("internal error")
)

// ValidationError carries per-field, phase-local errors. It is recoverable
// by user edit and never surfaced as a generic error banner.
type ValidationError struct {
	Phase  Phase
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed for phase %s: %s", e.Phase, strings.Join(keys, ", "))
}

// GenerationError is a generation failure after retries and fallback were
// exhausted. The last underlying cause is carried.
type GenerationError struct {
	Operation string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %q failed: %v", e.Operation, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError is a draft save/load failure. Save errors are retried on
// the next auto-save tick; load errors abort the draft-restore path.
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %q failed: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

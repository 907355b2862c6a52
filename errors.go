package draftset

import (
	"errors"
	"fmt"
)

// Sentinel errors for draftset. Use errors.Is to check.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrTimeout          = errors.New("tool execution timeout")
	ErrValidation       = errors.New("validation failed")
	ErrShutdown         = errors.New("registry is shutting down")
	ErrMalformedPath    = errors.New("malformed path")
	ErrPathTypeConflict = errors.New("path type conflict")
)

// ClientError is an error that should be sent back to the LLM for
// self-correction (e.g. invalid JSON, a malformed path, a rejected proposal).
// Do not expose stack traces or internal details to the LLM.
// Err optionally wraps a sentinel (e.g. ErrValidation, ErrMalformedPath) for
// errors.Is/errors.As.
type ClientError struct {
	Reason string
	// Hint, when set, tells the assistant how to fix the call (e.g. the
	// expected path syntax). It is surfaced in the tool failure payload.
	Hint string
	Err  error // wrapped sentinel for errors.Is/errors.As
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains (e.g. errors.Is(err, ErrValidation)).
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (archive down, panic, etc.).
// The LLM should not see the underlying error message or stack.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures.
// Used by Extractor.ParseAndValidate and the dynamic tool execute path so
// parse errors read the same everywhere.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error()}
}

// wrapPathError converts resolver errors into ClientErrors the assistant can
// act on; other errors pass through unchanged.
func wrapPathError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMalformedPath):
		return &ClientError{
			Reason: err.Error(),
			Hint:   "paths are dot-separated field names and array indices, e.g. contributor.0.name",
			Err:    ErrMalformedPath,
		}
	case errors.Is(err, ErrPathTypeConflict):
		return &ClientError{
			Reason: err.Error(),
			Hint:   "an existing value along the path has a different container kind; read the field first",
			Err:    ErrPathTypeConflict,
		}
	default:
		return err
	}
}

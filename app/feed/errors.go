package feed

import (
	"fmt"
)

// TransportError means a source could not be fetched: unreachable host,
// timeout or a non-200 response.
type TransportError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s: HTTP error: %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("source %s: transport error: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedPayloadError means a fetched payload could not be parsed at all.
type MalformedPayloadError struct {
	Source string
	Kind   SourceKind
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("source %s: malformed %s payload: %v", e.Source, e.Kind, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// MissingRequiredFieldError is raised for a single record that cannot enter
// the working set. It is logged, never surfaced to users.
type MissingRequiredFieldError struct {
	Source   string
	RecordID string
	Field    string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("source %s: record %q is missing %s", e.Source, e.RecordID, e.Field)
}

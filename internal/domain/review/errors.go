package review

import (
	"errors"
	"fmt"
)

var (
	// ErrPrimaryMissing analysis cannot start without a Form APR.
	ErrPrimaryMissing = errors.New("form apr is required before analysis")
	// ErrAnalysisInProgress a run is already in flight for this session.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrSessionNotFound unknown or evicted session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoChoices the model answered without any choice.
	ErrNoChoices = errors.New("no response from model api")
)

// ValidationError rejects an upload before any I/O happens.
type ValidationError struct {
	Field    string
	Message  string
	TooLarge bool
}

func (e *ValidationError) Error() string { return e.Message }

// ExtractionError wraps a failure to extract one file.
type ExtractionError struct {
	File  string
	Cause error
}

func (e *ExtractionError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("extraction failed: %v", e.Cause)
	}
	return fmt.Sprintf("extraction failed for %s: %v", e.File, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// ConfigurationError blocks a run before any network call.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Setting)
}

// ProviderError is the normalized failure of a call to the hosted OCR or chat API.
type ProviderError struct {
	HTTPStatus int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.HTTPStatus == 0 {
		return e.Message
	}
	return fmt.Sprintf("status %d: %s", e.HTTPStatus, e.Message)
}

// ErrorKind is the remediation class of a failed run.
type ErrorKind string

const (
	ErrorConfiguration ErrorKind = "configuration"
	ErrorUnauthorized  ErrorKind = "unauthorized"
	ErrorRateLimited   ErrorKind = "rate_limited"
	ErrorTooLarge      ErrorKind = "too_large"
	ErrorGeneric       ErrorKind = "generic"
)

// AnalysisError is the terminal failure of a run.
type AnalysisError struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

func (e *AnalysisError) Error() string { return e.Message }

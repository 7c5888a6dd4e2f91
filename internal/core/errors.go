package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	KindParse                 ErrorKind = "parse_error"
	KindExtraction            ErrorKind = "extraction_failure"
	KindSchemaMismatch        ErrorKind = "schema_mismatch"
	KindModelUnavailable      ErrorKind = "model_unavailable"
	KindEnrichmentUnavailable ErrorKind = "enrichment_unavailable"
)

// Sentinels usable with errors.Is
var (
	ErrParse                 = &Error{Kind: KindParse}
	ErrExtraction            = &Error{Kind: KindExtraction}
	ErrSchemaMismatch        = &Error{Kind: KindSchemaMismatch}
	ErrModelUnavailable      = &Error{Kind: KindModelUnavailable}
	ErrEnrichmentUnavailable = &Error{Kind: KindEnrichmentUnavailable}
)

// Error is a typed pipeline error
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// ParseError reports a byte stream that is not a well-formed email
func ParseError(msg string, err error) error {
	return &Error{Kind: KindParse, Msg: msg, Err: err}
}

// ExtractionFailure reports a body that could not be decoded as text
func ExtractionFailure(msg string, err error) error {
	return &Error{Kind: KindExtraction, Msg: msg, Err: err}
}

// SchemaMismatch reports disagreeing column sets between dataset, schema and model
func SchemaMismatch(msg string, err error) error {
	return &Error{Kind: KindSchemaMismatch, Msg: msg, Err: err}
}

// ModelUnavailable reports a missing or corrupt classifier artifact
func ModelUnavailable(msg string, err error) error {
	return &Error{Kind: KindModelUnavailable, Msg: msg, Err: err}
}

// EnrichmentUnavailable reports an unreachable or rate-limited enrichment source
func EnrichmentUnavailable(msg string, err error) error {
	return &Error{Kind: KindEnrichmentUnavailable, Msg: msg, Err: err}
}

// IsClientError reports whether err was caused by the submitted message itself
func IsClientError(err error) bool {
	return errors.Is(err, ErrParse) || errors.Is(err, ErrExtraction)
}

package core

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorKindsMatch(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"parse matches parse", ParseError("bad header", nil), ErrParse, true},
		{"wrapped parse matches", fmt.Errorf("upload: %w", ParseError("x", io.EOF)), ErrParse, true},
		{"parse is not extraction", ParseError("x", nil), ErrExtraction, false},
		{"model unavailable", ModelUnavailable("missing", nil), ErrModelUnavailable, true},
		{"schema mismatch", SchemaMismatch("order", nil), ErrSchemaMismatch, true},
		{"enrichment", EnrichmentUnavailable("timeout", nil), ErrEnrichmentUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := ExtractionFailure("body", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if !IsClientError(err) {
		t.Fatalf("extraction failure should be a client error")
	}
	if IsClientError(ModelUnavailable("x", nil)) {
		t.Fatalf("model unavailable is not a client error")
	}
}

func TestParsedMessageHeaderPresence(t *testing.T) {
	msg := NewParsedMessage(map[string]string{"Reply-To": "", "From": "a@b.com"}, []string{"r1", "r2"}, "", false)

	if v, ok := msg.Header("reply-to"); !ok || v != "" {
		t.Errorf("Reply-To should be present and empty, got %q %v", v, ok)
	}
	if _, ok := msg.Header("X-Mailer"); ok {
		t.Errorf("X-Mailer should be absent")
	}
	if msg.ReceivedCount() != 2 {
		t.Errorf("ReceivedCount() = %d, want 2", msg.ReceivedCount())
	}
	if LabelPhishing.String() != "PHISHING" || LabelLegitimate.String() != "LEGITIMATE" {
		t.Errorf("unexpected label names")
	}
}

// Package filter connects the detection service to mail transports.
package filter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mikey/phish-detector/internal/core"
)

// StatusUnknown is written when a message could not be analyzed
const StatusUnknown = "UNKNOWN"

// ErrorHeader carries the analysis failure of a passed-through message
const ErrorHeader = "X-Phish-Analysis-Error"

// Options controls how filters annotate and block messages
type Options struct {
	BlockPhishing    bool
	BlockThreshold   float64
	StatusHeader     string
	ConfidenceHeader string
	ReasonsHeader    string
}

type header struct {
	name  string
	value string
}

// shouldBlock reports whether a prediction is confident enough to reject
func shouldBlock(pred *core.Prediction, opts Options) bool {
	return opts.BlockPhishing && pred != nil &&
		pred.Label == core.LabelPhishing && pred.Confidence >= opts.BlockThreshold
}

// decisionHeaders returns the headers describing a prediction, or the
// analysis failure when pred is nil
func decisionHeaders(pred *core.Prediction, analysisErr error, opts Options) []header {
	if pred == nil {
		out := []header{{opts.StatusHeader, StatusUnknown}}
		if analysisErr != nil {
			out = append(out, header{ErrorHeader, sanitizeHeaderValue(analysisErr.Error())})
		}
		return out
	}

	return []header{
		{opts.StatusHeader, pred.Label.String()},
		{opts.ConfidenceHeader, fmt.Sprintf("%.4f", pred.Confidence)},
		{opts.ReasonsHeader, reasonList(pred.Reasons)},
	}
}

// reasonList joins feature names in rank order
func reasonList(reasons []core.Reason) string {
	names := make([]string, 0, len(reasons))
	for _, r := range reasons {
		names = append(names, r.Feature)
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// prependHeaders inserts headers at the top of a raw message using the
// message's own line ending
func prependHeaders(raw []byte, headers []header) []byte {
	eol := "\n"
	if i := bytes.IndexByte(raw, '\n'); i > 0 && raw[i-1] == '\r' {
		eol = "\r\n"
	}

	var buf bytes.Buffer
	for _, h := range headers {
		if h.name == "" {
			continue
		}
		buf.WriteString(h.name + ": " + sanitizeHeaderValue(h.value) + eol)
	}
	buf.Write(raw)
	return buf.Bytes()
}

// sanitizeHeaderValue keeps a value on a single header line
func sanitizeHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// senderDomain returns the domain of an envelope or header address for logging
func senderDomain(addr string) string {
	addr = extractEmailAddress(addr)
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return strings.ToLower(addr[i+1:])
	}
	return "unknown"
}

// extractEmailAddress extracts the address from forms like "Name <a@b.com>"
func extractEmailAddress(s string) string {
	start := strings.LastIndex(s, "<")
	end := strings.LastIndex(s, ">")
	if start >= 0 && end > start {
		return s[start+1 : end]
	}
	return strings.TrimSpace(s)
}

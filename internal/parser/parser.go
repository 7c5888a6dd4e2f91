// Package parser decodes raw email bytes into a core.ParsedMessage.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/mikey/phish-detector/internal/core"
)

const (
	contentTypeTextHTML  = "text/html"
	contentTypeTextPlain = "text/plain"
	contentTypeRfc822    = "message/rfc822"

	// maxDepth bounds nested multipart recursion
	maxDepth = 16
)

// singleHeaders are exposed as one optional value each
var singleHeaders = []string{
	"From",
	"To",
	"Subject",
	"Return-Path",
	"Reply-To",
	"X-Mailer",
	"Date",
	"Message-Id",
}

// Parse decodes a raw message. It fails with a ParseError when the bytes do not
// form a header block followed by a blank line, and with an ExtractionFailure
// when the selected body cannot be decoded as text.
func Parse(raw []byte) (*core.ParsedMessage, error) {
	normalized := normalizeLineEndings(raw)
	normalized = stripMboxEnvelope(normalized)

	if len(bytes.TrimSpace(normalized)) == 0 {
		return nil, core.ParseError("empty message", nil)
	}
	if !bytes.HasPrefix(normalized, []byte("\n")) && !bytes.Contains(normalized, []byte("\n\n")) {
		return nil, core.ParseError("missing blank line between headers and body", nil)
	}

	entity, err := message.Read(bytes.NewReader(normalized))
	if err != nil && !isDecodeError(err) {
		return nil, core.ParseError("malformed header block", err)
	}
	if entity == nil {
		return nil, core.ParseError("no message entity", err)
	}

	headers := make(map[string]string, len(singleHeaders))
	for _, name := range singleHeaders {
		if !entity.Header.Has(name) {
			continue
		}
		headers[name] = decodeHeaderValue(entity.Header, name)
	}

	var received []string
	fields := entity.Header.FieldsByKey("Received")
	for fields.Next() {
		received = append(received, fields.Value())
	}

	collector := &bodyCollector{}
	collector.walk(entity, err, 0)

	body, isHTML, bodyErr := collector.selected()
	if bodyErr != nil {
		return nil, core.ExtractionFailure("body could not be decoded as text", bodyErr)
	}

	return core.NewParsedMessage(headers, received, body, isHTML), nil
}

// normalizeLineEndings converts CRLF and lone CR to LF
func normalizeLineEndings(raw []byte) []byte {
	out := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
}

// stripMboxEnvelope drops a leading mbox "From " separator line
func stripMboxEnvelope(data []byte) []byte {
	if !bytes.HasPrefix(data, []byte("From ")) {
		return data
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[i+1:]
	}
	return data
}

func isDecodeError(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// decodeHeaderValue decodes RFC 2047 words, falling back to the raw value
func decodeHeaderValue(h message.Header, name string) string {
	if text, err := h.Text(name); err == nil {
		return text
	}
	return h.Get(name)
}

type candidate struct {
	body string
	err  error
}

// bodyCollector remembers the first HTML and first plain-text leaf part
type bodyCollector struct {
	html  *candidate
	plain *candidate
}

func (c *bodyCollector) walk(e *message.Entity, entityErr error, depth int) {
	if depth > maxDepth || (c.html != nil && c.plain != nil) {
		return
	}

	if mr := e.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return
			}
			if part == nil {
				// Broken multipart structure, keep what was found so far
				return
			}
			if err != nil && !isDecodeError(err) {
				return
			}
			c.walk(part, err, depth+1)
		}
	}

	if isAttachment(e) {
		return
	}

	switch mediaType(e) {
	case contentTypeTextHTML:
		if c.html == nil {
			c.html = readCandidate(e, entityErr)
		}
	case contentTypeTextPlain:
		if c.plain == nil {
			c.plain = readCandidate(e, entityErr)
		}
	}
}

// selected returns the preferred body: HTML first, then plain, then empty
func (c *bodyCollector) selected() (string, bool, error) {
	if c.html != nil {
		return c.html.body, true, c.html.err
	}
	if c.plain != nil {
		return c.plain.body, false, c.plain.err
	}
	return "", false, nil
}

func readCandidate(e *message.Entity, entityErr error) *candidate {
	if entityErr != nil {
		return &candidate{err: entityErr}
	}
	data, err := io.ReadAll(e.Body)
	if err != nil {
		return &candidate{err: fmt.Errorf("failed to read part body: %w", err)}
	}
	return &candidate{body: strings.ToValidUTF8(string(data), "�")}
}

// mediaType returns the lowercased media type, defaulting to text/plain
func mediaType(e *message.Entity) string {
	raw := e.Header.Get("Content-Type")
	if strings.TrimSpace(raw) == "" {
		return contentTypeTextPlain
	}
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		return strings.ToLower(mt)
	}
	// Tolerate broken parameters, the media type itself is often intact
	mt, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isAttachment(e *message.Entity) bool {
	if mediaType(e) == contentTypeRfc822 {
		return true
	}
	disp, _, err := e.Header.ContentDisposition()
	if err != nil {
		return false
	}
	return strings.EqualFold(disp, "attachment")
}

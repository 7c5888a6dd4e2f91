package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// truncationMarker is appended to text cut at the size limit
const truncationMarker = "\n[... Content truncated due to size limits ...]"

// TextProcessor prepares message bodies before they are sent to a language model
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText truncates text to maxSize bytes, keeping the result valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + truncationMarker
}

// SanitizeUTF8 drops invalid UTF-8 sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")
	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// HTMLToText returns the visible text of an HTML document with links kept
// inline as "text <href>" so a model can still see where they point
func (tp *TextProcessor) HTMLToText(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	var sb strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "tr", "li":
				sb.WriteByte('\n')
			case "a":
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						sb.WriteString(" <" + string(val) + "> ")
					}
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

// ProcessText truncates and sanitizes text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(text, maxSize))
}

// collapseWhitespace keeps line breaks but squeezes runs of blanks
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Package features turns a parsed email into the fixed set of numeric
// signals the classifier is trained on.
package features

import (
	"strings"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/parser"
)

// Feature names, in canonical column order
const (
	ReplyToDiffers     = "reply_to_differs"
	ReturnPathDiffers  = "return_path_differs"
	XMailerMissing     = "x_mailer_missing"
	ReceivedCount      = "received_count"
	SpoofedDisplayName = "spoofed_display_name"

	URLCount           = "url_count"
	HasIPURL           = "has_ip_url"
	HasShortener       = "has_shortener"
	URLLengthAvg       = "url_length_avg"
	HasHTTPS           = "has_https"
	HTTPSToken         = "https_token"
	HasAtInURL         = "has_at_in_url"
	SuspiciousKeywords = "suspicious_keywords"
	MouseOver          = "mouse_over"
	PopupWindow        = "popup_window"
	RightClickDisabled = "right_click_disabled"
	IFrame             = "iframe"
	SubmitToEmail      = "submit_to_email"
)

var columns = []string{
	ReplyToDiffers,
	ReturnPathDiffers,
	XMailerMissing,
	ReceivedCount,
	SpoofedDisplayName,
	URLCount,
	HasIPURL,
	HasShortener,
	URLLengthAvg,
	HasHTTPS,
	HTTPSToken,
	HasAtInURL,
	SuspiciousKeywords,
	MouseOver,
	PopupWindow,
	RightClickDisabled,
	IFrame,
	SubmitToEmail,
}

// Columns returns the canonical feature order
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// Extractor computes feature vectors against a fixed lexicon. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	lexicon Lexicon
}

// NewExtractor creates an extractor for the given lexicon
func NewExtractor(lexicon Lexicon) *Extractor {
	return &Extractor{lexicon: lexicon.normalized()}
}

// Lexicon returns the normalized tables in use
func (e *Extractor) Lexicon() Lexicon {
	return e.lexicon
}

// ExtractRaw parses raw bytes and extracts their features. Parse and body
// decoding failures are returned unchanged.
func (e *Extractor) ExtractRaw(raw []byte) (core.FeatureVector, error) {
	msg, err := parser.Parse(raw)
	if err != nil {
		return core.FeatureVector{}, err
	}
	return e.Extract(msg), nil
}

// Extract computes every feature for a parsed message. Signals that cannot be
// derived default to 0.
func (e *Extractor) Extract(msg *core.ParsedMessage) core.FeatureVector {
	vec := core.NewFeatureVector()
	e.extractHeaders(msg, &vec)
	e.extractBody(msg, vec)
	return vec
}

func (e *Extractor) extractHeaders(msg *core.ParsedMessage, vec *core.FeatureVector) {
	from := msg.HeaderOrEmpty("From")
	fromDomain := RegistrableDomain(from)
	replyToDomain := RegistrableDomain(msg.HeaderOrEmpty("Reply-To"))
	returnPathDomain := RegistrableDomain(msg.HeaderOrEmpty("Return-Path"))

	vec.FromDomain = fromDomain
	vec.SetFlag(ReplyToDiffers, replyToDomain != "" && replyToDomain != fromDomain)
	vec.SetFlag(ReturnPathDiffers, returnPathDomain != "" && returnPathDomain != fromDomain)

	_, hasMailer := msg.Header("X-Mailer")
	vec.SetFlag(XMailerMissing, !hasMailer)
	vec.Set(ReceivedCount, float64(msg.ReceivedCount()))
	vec.SetFlag(SpoofedDisplayName, e.spoofedBrand(from, fromDomain))
}

// spoofedBrand reports whether From names a brand it is not sent from
func (e *Extractor) spoofedBrand(from, fromDomain string) bool {
	folded := fold(from)
	for _, b := range e.lexicon.Brands {
		if strings.Contains(folded, b.Token) && fromDomain != b.Domain {
			return true
		}
	}
	return false
}

func (e *Extractor) extractBody(msg *core.ParsedMessage, vec core.FeatureVector) {
	body := msg.Body

	urls := analyzeURLs(FindURLs(body), e.lexicon.Shorteners)
	vec.Set(URLCount, float64(urls.count))
	vec.SetFlag(HasIPURL, urls.ipHost)
	vec.SetFlag(HasShortener, urls.shortener)
	vec.Set(URLLengthAvg, urls.avgLength)
	vec.SetFlag(HasHTTPS, urls.https)
	vec.SetFlag(HTTPSToken, urls.httpsToken)
	vec.SetFlag(HasAtInURL, urls.at)

	lowerBody := strings.ToLower(body)
	hits := 0
	for _, kw := range e.lexicon.Keywords {
		if strings.Contains(lowerBody, kw) {
			hits++
		}
	}
	vec.Set(SuspiciousKeywords, float64(hits))

	rendered := renderBody(body)
	vec.SetFlag(MouseOver, strings.Contains(rendered.text, "onmouseover"))
	vec.SetFlag(PopupWindow, strings.Contains(rendered.text, "window.open"))
	vec.SetFlag(RightClickDisabled, strings.Contains(rendered.text, "contextmenu"))
	vec.SetFlag(IFrame, strings.Contains(rendered.text, "<iframe"))
	vec.SetFlag(SubmitToEmail, rendered.mailtoAction)
}

package core

import (
	"strings"
	"time"
)

// Label is the classifier's discrete output
type Label int

const (
	// LabelLegitimate marks a message the model considers safe
	LabelLegitimate Label = 0
	// LabelPhishing marks a message the model considers phishing
	LabelPhishing Label = 1
)

// String returns the label name used in API responses
func (l Label) String() string {
	if l == LabelPhishing {
		return "PHISHING"
	}
	return "LEGITIMATE"
}

// ParsedMessage is the structured view of one raw email.
// Header lookups are case-insensitive and absence is explicit.
type ParsedMessage struct {
	headers  map[string]string
	received []string

	// Body is the selected payload: HTML when present, otherwise plain text
	Body string
	// BodyIsHTML reports whether Body came from a text/html part
	BodyIsHTML bool
}

// NewParsedMessage builds a ParsedMessage from already decoded header values
func NewParsedMessage(headers map[string]string, received []string, body string, isHTML bool) *ParsedMessage {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToLower(k)] = v
	}
	rcv := make([]string, len(received))
	copy(rcv, received)

	return &ParsedMessage{
		headers:    normalized,
		received:   rcv,
		Body:       body,
		BodyIsHTML: isHTML,
	}
}

// Header returns the value of a header and whether it was present
func (m *ParsedMessage) Header(name string) (string, bool) {
	v, ok := m.headers[strings.ToLower(name)]
	return v, ok
}

// HeaderOrEmpty returns the header value, or "" when it is absent
func (m *ParsedMessage) HeaderOrEmpty(name string) string {
	v, _ := m.Header(name)
	return v
}

// Received returns every Received header in message order
func (m *ParsedMessage) Received() []string {
	out := make([]string, len(m.received))
	copy(out, m.received)
	return out
}

// ReceivedCount returns the number of Received headers
func (m *ParsedMessage) ReceivedCount() int {
	return len(m.received)
}

// FeatureVector maps feature names to numeric values for one message.
// FromDomain is kept for auditing and is never fed to the classifier.
type FeatureVector struct {
	Values     map[string]float64
	FromDomain string
}

// NewFeatureVector creates an empty feature vector
func NewFeatureVector() FeatureVector {
	return FeatureVector{Values: make(map[string]float64)}
}

// Get returns the value of a feature, defaulting to 0
func (v FeatureVector) Get(name string) float64 {
	return v.Values[name]
}

// Set stores a feature value
func (v FeatureVector) Set(name string, value float64) {
	v.Values[name] = value
}

// SetFlag stores 1 when cond is true, else 0
func (v FeatureVector) SetFlag(name string, cond bool) {
	if cond {
		v.Values[name] = 1
		return
	}
	v.Values[name] = 0
}

// ImportanceMap holds the classifier's per-feature importance weights
type ImportanceMap map[string]float64

// Reason is one ranked contributor to a prediction
type Reason struct {
	Feature     string  `json:"feature"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
}

// Prediction is the outcome of scoring one message
type Prediction struct {
	Label      Label
	Confidence float64
	Reasons    []Reason
	FromDomain string
	AnalyzedAt time.Time
}

// URLVerdict is what an enrichment source knows about one URL
type URLVerdict struct {
	URL        string    `json:"url"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Listed     bool      `json:"listed"`
	Malicious  int       `json:"malicious"`
	Suspicious int       `json:"suspicious"`
	Harmless   int       `json:"harmless"`
	RiskScore  int       `json:"risk_score"`
	RiskLevel  string    `json:"risk_level,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Verdict statuses
const (
	StatusOK      = "ok"
	StatusUnknown = "unknown"
)

// Advisory is a second opinion from a language model
type Advisory struct {
	IsPhishing  bool      `json:"is_phishing"`
	Score       float64   `json:"score"`
	Confidence  float64   `json:"confidence"`
	Explanation string    `json:"explanation"`
	ModelUsed   string    `json:"model"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

// EnrichmentReport gathers the best-effort signals collected next to a prediction
type EnrichmentReport struct {
	HeaderAnomalies []string     `json:"header_anomalies"`
	URLs            []URLVerdict `json:"urls"`
	Advisory        *Advisory    `json:"advisory,omitempty"`
	Unavailable     []string     `json:"unavailable,omitempty"`
}

// CacheEntry is a stored reputation verdict for one URL
type CacheEntry struct {
	URL       string
	Verdict   URLVerdict
	LastSeen  time.Time
	ExpiresAt time.Time
}

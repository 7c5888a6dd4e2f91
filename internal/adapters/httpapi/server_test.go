package httpapi

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/detector"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/ports"
	"github.com/mikey/phish-detector/internal/testutil"
)

var _ ports.MailFilter = (*Server)(nil)

type stubEnricher struct{}

func (stubEnricher) Enrich(context.Context, *core.ParsedMessage) *core.EnrichmentReport {
	return &core.EnrichmentReport{HeaderAnomalies: []string{"no_received_headers"}}
}

func newTestServer(t *testing.T, enricher detector.Enricher, opts Options) *Server {
	t.Helper()
	svc := detector.NewService(features.NewExtractor(features.DefaultLexicon()), testutil.Model(t), enricher, zap.NewNop(), 5)
	return NewServer(svc, zap.NewNop(), opts)
}

func upload(t *testing.T, field string, content []byte, query string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "message.eml")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/predict_email"+query, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", data, err)
	}
	return out
}

func TestPredictEmail(t *testing.T) {
	s := newTestServer(t, stubEnricher{}, Options{})

	resp, err := s.App().Test(upload(t, uploadField, []byte(testutil.PhishingMessage), ""), -1)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Errorf("missing request id header")
	}

	got := decode[PredictResponse](t, resp)
	if got.Prediction != "PHISHING" || got.Label != 1 {
		t.Errorf("prediction = %s/%d", got.Prediction, got.Label)
	}
	if got.Confidence <= 0.5 || got.Confidence > 1 {
		t.Errorf("confidence = %v", got.Confidence)
	}
	if len(got.Reasons) == 0 || len(got.Reasons) > 5 {
		t.Fatalf("reasons = %v", got.Reasons)
	}
	for _, r := range got.Reasons {
		if r.Value == 0 || r.Description == "" {
			t.Errorf("unexpected reason %+v", r)
		}
	}
	if got.Enrichment != nil {
		t.Errorf("enrichment should only be present when requested")
	}
}

func TestPredictEmailWithEnrichment(t *testing.T) {
	s := newTestServer(t, stubEnricher{}, Options{})

	resp, err := s.App().Test(upload(t, uploadField, []byte(testutil.LegitimateMessage), "?enrich=1"), -1)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	got := decode[PredictResponse](t, resp)
	if got.Prediction != "LEGITIMATE" {
		t.Errorf("prediction = %s", got.Prediction)
	}
	if got.Enrichment == nil || len(got.Enrichment.HeaderAnomalies) != 1 {
		t.Errorf("enrichment = %+v", got.Enrichment)
	}
}

func TestPredictEmailClientErrors(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	tests := []struct {
		name    string
		req     *http.Request
		message string
	}{
		{
			name:    "missing file field",
			req:     upload(t, "attachment", []byte(testutil.PhishingMessage), ""),
			message: "no file provided",
		},
		{
			name:    "binary upload",
			req:     upload(t, uploadField, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"), ""),
			message: "not a text email",
		},
		{
			name:    "not an email",
			req:     upload(t, uploadField, []byte("just some words"), ""),
			message: "parse_error",
		},
		{
			name:    "undecodable body",
			req:     upload(t, uploadField, []byte("From: a@b.com\nContent-Type: text/plain; charset=x-klingon\n\nqapla\n"), ""),
			message: "extraction_failure",
		},
		{
			name:    "not multipart",
			req:     httptest.NewRequest(http.MethodPost, "/predict_email", strings.NewReader("x")),
			message: "no file provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.App().Test(tt.req, -1)
			if err != nil {
				t.Fatalf("Test() error = %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			got := decode[ErrorResponse](t, resp)
			if !strings.Contains(got.Error, tt.message) {
				t.Errorf("error = %q, want it to mention %q", got.Error, tt.message)
			}
			if got.RequestID == "" {
				t.Errorf("error response without request id")
			}
		})
	}
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	for _, path := range []string{"/", "/health"} {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
	}

	// One prediction so the label counter has a sample
	if _, err := s.App().Test(upload(t, uploadField, []byte(testutil.PhishingMessage), ""), -1); err != nil {
		t.Fatal(err)
	}

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `phishdetect_predictions_total{label="PHISHING"} 1`) {
		t.Errorf("metrics missing prediction counter:\n%s", body)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "4f8c2e7a-3b1d-4c5e-9a6f-0123456789ab")

	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "4f8c2e7a-3b1d-4c5e-9a6f-0123456789ab" {
		t.Errorf("request id = %q", got)
	}
}

package filter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/detector"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/ports"
	"github.com/mikey/phish-detector/internal/testutil"
	"go.uber.org/zap"
)

var (
	_ ports.MailFilter = (*PostfixFilter)(nil)
	_ ports.MailFilter = (*MilterFilter)(nil)
	_ ports.MailFilter = (*CliFilter)(nil)
)

func testOptions(block bool) Options {
	return Options{
		BlockPhishing:    block,
		BlockThreshold:   0.5,
		StatusHeader:     "X-Phish-Status",
		ConfidenceHeader: "X-Phish-Confidence",
		ReasonsHeader:    "X-Phish-Reasons",
	}
}

func newService(t *testing.T) *detector.Service {
	t.Helper()
	return detector.NewService(features.NewExtractor(features.DefaultLexicon()), testutil.Model(t), nil, zap.NewNop(), 3)
}

func TestShouldBlock(t *testing.T) {
	phish := &core.Prediction{Label: core.LabelPhishing, Confidence: 0.7}
	legit := &core.Prediction{Label: core.LabelLegitimate, Confidence: 0.99}

	tests := []struct {
		name string
		pred *core.Prediction
		opts Options
		want bool
	}{
		{"blocking disabled", phish, testOptions(false), false},
		{"phishing above threshold", phish, testOptions(true), true},
		{"phishing below threshold", phish, Options{BlockPhishing: true, BlockThreshold: 0.9}, false},
		{"legitimate", legit, testOptions(true), false},
		{"no prediction", nil, testOptions(true), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldBlock(tt.pred, tt.opts); got != tt.want {
				t.Errorf("shouldBlock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecisionHeaders(t *testing.T) {
	pred := &core.Prediction{
		Label:      core.LabelPhishing,
		Confidence: 0.87654,
		Reasons:    []core.Reason{{Feature: "has_ip_url"}, {Feature: "suspicious_keywords"}},
	}
	got := decisionHeaders(pred, nil, testOptions(false))
	want := []header{
		{"X-Phish-Status", "PHISHING"},
		{"X-Phish-Confidence", "0.8765"},
		{"X-Phish-Reasons", "has_ip_url, suspicious_keywords"},
	}
	if len(got) != len(want) {
		t.Fatalf("decisionHeaders() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d = %v, want %v", i, got[i], want[i])
		}
	}

	failed := decisionHeaders(nil, errors.New("bad\r\nthing"), testOptions(false))
	if len(failed) != 2 || failed[0].value != StatusUnknown || failed[1].value != "bad thing" {
		t.Errorf("decisionHeaders() for failure = %v", failed)
	}
}

func TestPrependHeaders(t *testing.T) {
	hs := []header{{"X-A", "1"}, {"", "skipped"}, {"X-B", "two\nlines"}}

	crlf := prependHeaders([]byte("From: a@b.com\r\n\r\nbody"), hs)
	if string(crlf) != "X-A: 1\r\nX-B: two lines\r\nFrom: a@b.com\r\n\r\nbody" {
		t.Errorf("CRLF message = %q", crlf)
	}

	lf := prependHeaders([]byte("From: a@b.com\n\nbody"), hs)
	if string(lf) != "X-A: 1\nX-B: two lines\nFrom: a@b.com\n\nbody" {
		t.Errorf("LF message = %q", lf)
	}
}

func TestSenderDomain(t *testing.T) {
	tests := map[string]string{
		"Alice <alice@Company.com>": "company.com",
		"bob@example.org":           "example.org",
		"":                          "unknown",
		"no-at-sign":                "unknown",
	}
	for in, want := range tests {
		if got := senderDomain(in); got != want {
			t.Errorf("senderDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

type forwarded struct {
	sender     string
	recipients []string
	data       []byte
}

func newPostfix(t *testing.T, block bool) (*PostfixFilter, *[]forwarded) {
	t.Helper()
	f := NewPostfixFilter(newService(t), zap.NewNop(), "127.0.0.1:0", "127.0.0.1:0", testOptions(block))
	var sent []forwarded
	f.forward = func(sender string, recipients []string, data []byte) error {
		sent = append(sent, forwarded{sender, recipients, data})
		return nil
	}
	return f, &sent
}

func TestPostfixHandle(t *testing.T) {
	t.Run("annotates and forwards", func(t *testing.T) {
		f, sent := newPostfix(t, false)
		if err := f.handle("billing@paypal-support.xyz", []string{"victim@example.com"}, []byte(testutil.PhishingMessage)); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
		if len(*sent) != 1 {
			t.Fatalf("forwarded %d messages, want 1", len(*sent))
		}
		data := string((*sent)[0].data)
		if !strings.HasPrefix(data, "X-Phish-Status: PHISHING\r\n") {
			t.Errorf("missing status header: %q", data)
		}
		if !strings.HasSuffix(data, testutil.PhishingMessage) {
			t.Errorf("original message not preserved")
		}
	})

	t.Run("rejects when blocking", func(t *testing.T) {
		f, sent := newPostfix(t, true)
		err := f.handle("billing@paypal-support.xyz", []string{"victim@example.com"}, []byte(testutil.PhishingMessage))
		var smtpErr *smtp.SMTPError
		if !errors.As(err, &smtpErr) || smtpErr.Code != 550 {
			t.Fatalf("handle() error = %v, want 550", err)
		}
		if len(*sent) != 0 {
			t.Errorf("rejected message was forwarded")
		}
	})

	t.Run("legitimate mail passes when blocking", func(t *testing.T) {
		f, sent := newPostfix(t, true)
		if err := f.handle("alice@company.com", []string{"bob@company.com"}, []byte(testutil.LegitimateMessage)); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
		if len(*sent) != 1 || !bytes.Contains((*sent)[0].data, []byte("X-Phish-Status: LEGITIMATE")) {
			t.Errorf("legitimate message not annotated and forwarded")
		}
	})

	t.Run("unparsable mail passes through", func(t *testing.T) {
		f, sent := newPostfix(t, true)
		if err := f.handle("x@y.z", []string{"a@b.c"}, []byte("garbage without headers")); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
		if len(*sent) != 1 || !bytes.Contains((*sent)[0].data, []byte(ErrorHeader+": parse_error")) {
			t.Errorf("unparsable message not passed through with error header: %q", (*sent)[0].data)
		}
	})

	t.Run("forward failure is a temporary error", func(t *testing.T) {
		f, _ := newPostfix(t, false)
		f.forward = func(string, []string, []byte) error { return errors.New("connection refused") }
		err := f.handle("alice@company.com", nil, []byte(testutil.LegitimateMessage))
		var smtpErr *smtp.SMTPError
		if !errors.As(err, &smtpErr) || smtpErr.Code != 451 {
			t.Errorf("handle() error = %v, want 451", err)
		}
	})
}

func TestMilterDecide(t *testing.T) {
	f := NewMilterFilter(newService(t), zap.NewNop(), "127.0.0.1:0", testOptions(true))

	if _, reject := f.decide("billing@paypal-support.xyz", []byte(testutil.PhishingMessage)); !reject {
		t.Errorf("phishing message should be rejected")
	}

	headers, reject := f.decide("alice@company.com", []byte(testutil.LegitimateMessage))
	if reject || len(headers) != 3 || headers[0].value != "LEGITIMATE" {
		t.Errorf("decide() = %v, %v", headers, reject)
	}

	headers, reject = f.decide("x@y.z", []byte(""))
	if reject || headers[0].value != StatusUnknown {
		t.Errorf("decide() for empty message = %v, %v", headers, reject)
	}
}

func TestCliFilter(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(newService(t), zap.NewNop(), true, &out)

	pred, err := f.ProcessMessage(context.Background(), []byte(testutil.PhishingMessage))
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if pred.Label != core.LabelPhishing {
		t.Errorf("Label = %v", pred.Label)
	}
	report := out.String()
	for _, want := range []string{"Prediction: PHISHING", "From domain: paypal-support.xyz", "has_ip_url", "=== Features ==="} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	out.Reset()
	if _, err := f.ProcessMessage(context.Background(), []byte("")); !errors.Is(err, core.ErrParse) {
		t.Errorf("ProcessMessage() error = %v, want parse error", err)
	}
	if !strings.Contains(out.String(), "Error:") {
		t.Errorf("error not reported: %q", out.String())
	}
}

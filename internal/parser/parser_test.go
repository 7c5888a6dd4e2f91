package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/mikey/phish-detector/internal/core"
)

const multipartMessage = "From: PayPal Service <service@paypal-alerts.xyz>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: =?UTF-8?B?VmVyaWZ5IHlvdXIgYWNjb3VudA==?=\r\n" +
	"Received: from relay1.example.net\r\n" +
	"Received: from relay2.example.net\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"BOUNDARY\"\r\n" +
	"\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain version\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"<html><body><a href=3D\"http://1.2.3.4/login\">click</a></body></html>\r\n" +
	"--BOUNDARY--\r\n"

func TestParsePrefersHTML(t *testing.T) {
	msg, err := Parse([]byte(multipartMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !msg.BodyIsHTML {
		t.Errorf("expected the HTML part to be selected")
	}
	if !strings.Contains(msg.Body, `href="http://1.2.3.4/login"`) {
		t.Errorf("quoted-printable body was not decoded: %q", msg.Body)
	}
	if got := msg.HeaderOrEmpty("subject"); got != "Verify your account" {
		t.Errorf("Subject = %q, want decoded encoded-word", got)
	}
	if msg.ReceivedCount() != 2 {
		t.Errorf("ReceivedCount() = %d, want 2", msg.ReceivedCount())
	}
	rcv := msg.Received()
	if rcv[0] != "from relay1.example.net" || rcv[1] != "from relay2.example.net" {
		t.Errorf("Received order not preserved: %v", rcv)
	}
}

func TestParseHeaderAbsenceIsExplicit(t *testing.T) {
	raw := "From: alice@company.com\nReply-To:\n\nhello\n"
	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if v, ok := msg.Header("Reply-To"); !ok || v != "" {
		t.Errorf("Reply-To = %q present=%v, want present and empty", v, ok)
	}
	if _, ok := msg.Header("X-Mailer"); ok {
		t.Errorf("X-Mailer should be absent")
	}
	if _, ok := msg.Header("Return-Path"); ok {
		t.Errorf("Return-Path should be absent")
	}
	if msg.BodyIsHTML || strings.TrimSpace(msg.Body) != "hello" {
		t.Errorf("unexpected body %q (html=%v)", msg.Body, msg.BodyIsHTML)
	}
}

func TestParsePlainOnlyAndEmptyBody(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantBody string
	}{
		{
			name:     "plain text with bare CR line endings",
			raw:      "From: a@b.com\rSubject: hi\r\rbody text\r",
			wantBody: "body text\n",
		},
		{
			name:     "attachment only",
			raw:      "From: a@b.com\nContent-Type: multipart/mixed; boundary=X\n\n--X\nContent-Type: application/pdf\nContent-Disposition: attachment; filename=a.pdf\n\nxxxx\n--X--\n",
			wantBody: "",
		},
		{
			name:     "base64 html",
			raw:      "From: a@b.com\nContent-Type: text/html\nContent-Transfer-Encoding: base64\n\nPGI+aGk8L2I+\n",
			wantBody: "<b>hi</b>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if msg.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", msg.Body, tt.wantBody)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty input", "", core.ErrParse},
		{"whitespace only", " \r\n\r\n", core.ErrParse},
		{"no header/body delimiter", "From: a@b.com\nSubject: x\n", core.ErrParse},
		{"header line without colon", "this is not a header\n\nbody\n", core.ErrParse},
		{"continuation before any header", " folded\nFrom: a@b.com\n\nbody\n", core.ErrParse},
		{"unknown charset", "From: a@b.com\nContent-Type: text/plain; charset=x-klingon\n\nqapla\n", core.ErrExtraction},
		{"unknown transfer encoding", "From: a@b.com\nContent-Type: text/html\nContent-Transfer-Encoding: x-rot13\n\n<b>x</b>\n", core.ErrExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if err == nil {
				t.Fatalf("Parse() expected error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestParseDoesNotMutateInput(t *testing.T) {
	raw := []byte("From: a@b.com\r\n\r\nbody\r\n")
	original := string(raw)

	if _, err := Parse(raw); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if string(raw) != original {
		t.Errorf("input bytes were mutated")
	}
}

func TestParseStripsMboxEnvelope(t *testing.T) {
	raw := "From sender@example.com Mon Jan  1 00:00:00 2024\nFrom: sender@example.com\n\nhi\n"
	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := msg.HeaderOrEmpty("From"); got != "sender@example.com" {
		t.Errorf("From = %q", got)
	}
}

package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikey/phish-detector/internal/config"
	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/utils"
	"go.uber.org/zap"
)

func newServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Verify your account") {
			t.Errorf("request did not carry the prompt: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
			return
		}
		io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":`+content+`},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAdvisor(t *testing.T, baseURL string) *OpenAIAdvisor {
	t.Helper()
	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("openai.api_key", "test")
	cfg.Set("openai.base_url", baseURL)

	adv, err := NewFactory(cfg, zap.NewNop(), utils.NewTextProcessor(zap.NewNop())).CreateAdvisor()
	if err != nil {
		t.Fatalf("CreateAdvisor() error = %v", err)
	}
	return adv.(*OpenAIAdvisor)
}

func message() *core.ParsedMessage {
	return core.NewParsedMessage(map[string]string{"Subject": "Verify your account"}, nil, "click now", false)
}

func TestAnalyzeMessage(t *testing.T) {
	content := `"{\"is_phishing\": true, \"score\": 0.9, \"confidence\": 0.7, \"explanation\": \"credential lure\"}"`
	srv := newServer(t, content, http.StatusOK)

	got, err := newAdvisor(t, srv.URL+"/v1").AnalyzeMessage(context.Background(), message())
	if err != nil {
		t.Fatalf("AnalyzeMessage() error = %v", err)
	}
	if !got.IsPhishing || got.Score != 0.9 || got.Explanation != "credential lure" || got.ModelUsed != "gpt-4" {
		t.Errorf("AnalyzeMessage() = %+v", got)
	}
}

func TestAnalyzeMessageAPIError(t *testing.T) {
	srv := newServer(t, "", http.StatusTooManyRequests)

	if _, err := newAdvisor(t, srv.URL+"/v1").AnalyzeMessage(context.Background(), message()); err == nil {
		t.Errorf("AnalyzeMessage() expected error")
	}
}

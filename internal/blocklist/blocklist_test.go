package blocklist

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestContains(t *testing.T) {
	feed := "# openphish\nhttp://evil.example.com/login\n\nhttps://Phish.Test/a/b/\n"
	s, err := Read(strings.NewReader(feed), zap.NewNop())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	tests := map[string]bool{
		"http://evil.example.com/login":  true,
		"HTTP://EVIL.example.com/login":  true,
		"http://evil.example.com/login/": true,
		"http://evil.example.com/LOGIN":  false,
		"https://phish.test/a/b":         true,
		"https://phish.test/a":           false,
		"":                               false,
	}
	for url, want := range tests {
		if got := s.Contains(url); got != want {
			t.Errorf("Contains(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestNilSet(t *testing.T) {
	var s *Set
	if s.Contains("http://x.com") || s.Len() != 0 {
		t.Errorf("nil set should be empty")
	}
}

// Package blocklist holds sets of known malicious URLs loaded from feeds.
package blocklist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Set is an immutable collection of listed URLs
type Set struct {
	urls map[string]struct{}
}

// New creates a set from URLs, ignoring blanks and comment lines
func New(urls []string, logger *zap.Logger) *Set {
	s := &Set{urls: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "#") {
			continue
		}
		s.urls[normalize(u)] = struct{}{}
	}

	if logger != nil {
		logger.Info("Initialized URL blocklist", zap.Int("entries", len(s.urls)))
	}
	return s
}

// Read loads a feed with one URL per line
func Read(r io.Reader, logger *zap.Logger) (*Set, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		urls = append(urls, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return New(urls, logger), nil
}

// Contains reports whether the URL is listed
func (s *Set) Contains(url string) bool {
	if s == nil || len(s.urls) == 0 {
		return false
	}
	_, ok := s.urls[normalize(strings.TrimSpace(url))]
	return ok
}

// Len returns the number of listed URLs
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.urls)
}

// normalize lowercases scheme and host and drops a single trailing slash, so
// feed entries match the URLs found in bodies regardless of those details
func normalize(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return strings.TrimSuffix(u, "/")
	}
	host, path := rest, ""
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		host, path = rest[:i], rest[i:]
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host) + strings.TrimSuffix(path, "/")
}

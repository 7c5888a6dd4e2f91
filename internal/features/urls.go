package features

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	urlPattern  = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)
	ipv4Pattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
)

// FindURLs returns every http(s) token in text, in order and with repeats
func FindURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// URLHost returns the lowercased host of a URL token without userinfo or port
func URLHost(u string) string {
	_, rest, ok := strings.Cut(u, "://")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#\\"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndexByte(rest, '@'); i >= 0 {
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end > 0 {
			return strings.ToLower(rest[1:end])
		}
		return ""
	}
	if i := strings.LastIndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSuffix(strings.ToLower(rest), ".")
}

type urlStats struct {
	count      int
	avgLength  float64
	ipHost     bool
	shortener  bool
	https      bool
	httpsToken bool
	at         bool
}

func analyzeURLs(urls []string, shorteners []string) urlStats {
	stats := urlStats{count: len(urls)}
	if len(urls) == 0 {
		return stats
	}

	total := 0
	for _, u := range urls {
		total += utf8.RuneCountInString(u)
		lower := strings.ToLower(u)

		host := URLHost(u)
		if ipv4Pattern.MatchString(host) {
			stats.ipHost = true
		}
		if isShortener(host, shorteners) {
			stats.shortener = true
		}
		if strings.HasPrefix(lower, "https://") {
			stats.https = true
		}
		if _, rest, ok := strings.Cut(lower, "://"); ok && strings.Contains(rest, "https") {
			stats.httpsToken = true
		}
		if strings.Contains(u, "@") {
			stats.at = true
		}
	}
	stats.avgLength = float64(total) / float64(len(urls))

	return stats
}

// isShortener matches host against the shortener table, subdomains included
func isShortener(host string, shorteners []string) bool {
	if host == "" {
		return false
	}
	for _, s := range shorteners {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

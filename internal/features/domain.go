package features

import (
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var addrDomainPattern = regexp.MustCompile(`@([A-Za-z0-9.\-]+)`)

// RegistrableDomain returns the public-suffix-aware registrable domain of the
// first address in an address-bearing header value, or "" when none exists.
func RegistrableDomain(header string) string {
	host := addressHost(header)
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// addressHost extracts the lowercased host part of an address header
func addressHost(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	var host string
	if addr, err := mail.ParseAddress(header); err == nil {
		if i := strings.LastIndexByte(addr.Address, '@'); i >= 0 {
			host = addr.Address[i+1:]
		}
	}
	if host == "" {
		// Lenient fallback for headers net/mail refuses, e.g. bare display names with stray quotes
		m := addrDomainPattern.FindStringSubmatch(header)
		if m == nil {
			return ""
		}
		host = m[1]
	}

	host = strings.Trim(strings.ToLower(host), ".")
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}
	return host
}

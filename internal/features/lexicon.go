package features

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Brand maps a display-name token to the domain that may legitimately use it
type Brand struct {
	Token  string
	Domain string
}

// Lexicon holds the tables the extractor matches against
type Lexicon struct {
	Brands     []Brand
	Shorteners []string
	Keywords   []string
}

// DefaultLexicon returns the built-in brand, shortener and keyword tables
func DefaultLexicon() Lexicon {
	return Lexicon{
		Brands: []Brand{
			{Token: "apple", Domain: "apple.com"},
			{Token: "yesbank", Domain: "yesbank.in"},
			{Token: "paypal", Domain: "paypal.com"},
			{Token: "netflix", Domain: "netflix.com"},
		},
		Shorteners: []string{"bit.ly", "tinyurl.com", "goo.gl", "ow.ly", "t.co", "buff.ly"},
		Keywords:   []string{"verify", "update", "login", "urgent", "click", "account", "password"},
	}
}

// NewLexicon builds a lexicon from configuration tables. Empty tables fall
// back to the defaults so a partial config never disables a feature.
func NewLexicon(brands map[string]string, shorteners, keywords []string) Lexicon {
	def := DefaultLexicon()
	lex := Lexicon{}

	if len(brands) == 0 {
		lex.Brands = def.Brands
	} else {
		tokens := make([]string, 0, len(brands))
		for token := range brands {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)
		for _, token := range tokens {
			lex.Brands = append(lex.Brands, Brand{Token: token, Domain: brands[token]})
		}
	}

	lex.Shorteners = shorteners
	if len(lex.Shorteners) == 0 {
		lex.Shorteners = def.Shorteners
	}
	lex.Keywords = keywords
	if len(lex.Keywords) == 0 {
		lex.Keywords = def.Keywords
	}

	return lex.normalized()
}

// normalized lowercases every entry and drops blanks and duplicates
func (l Lexicon) normalized() Lexicon {
	out := Lexicon{}

	seen := make(map[string]bool)
	for _, b := range l.Brands {
		token := fold(b.Token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		out.Brands = append(out.Brands, Brand{Token: token, Domain: strings.ToLower(strings.TrimSpace(b.Domain))})
	}

	out.Shorteners = dedupe(l.Shorteners, func(s string) string {
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
	})
	out.Keywords = dedupe(l.Keywords, fold)

	return out
}

func dedupe(in []string, key func(string) string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := key(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// fold applies NFKC compatibility normalization and lowercases the result,
// so fullwidth or ligature forms of a brand still match
func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

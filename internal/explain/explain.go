// Package explain ranks the features that contributed to a prediction.
//
// Features whose value is zero did not fire for the message and are left out
// before ranking, on every path that produces explanations.
package explain

import (
	"math"
	"sort"

	"github.com/mikey/phish-detector/internal/core"
)

// DefaultTopN is the number of reasons returned when topN is not positive
const DefaultTopN = 5

var descriptions = map[string]string{
	"reply_to_differs":     "Reply-To domain is different from From domain",
	"return_path_differs":  "Return-Path domain is different from From domain",
	"x_mailer_missing":     "Missing X-Mailer header",
	"received_count":       "Unusual number of Received headers",
	"spoofed_display_name": "Display name contains brand but domain doesn't match official",
	"url_count":            "Email contains multiple URLs",
	"has_ip_url":           "URL uses a raw IP address",
	"has_shortener":        "URL uses a known link shortener",
	"url_length_avg":       "Average URL length is unusually long",
	"has_https":            "Contains HTTPS links",
	"https_token":          "URL contains misleading 'https' token",
	"has_at_in_url":        "URL contains '@' symbol",
	"suspicious_keywords":  "Email contains phishing-related keywords",
	"mouse_over":           "Mouse-over JavaScript event detected",
	"popup_window":         "Popup window JavaScript detected",
	"right_click_disabled": "Right-click is disabled in email",
	"iframe":               "Email contains iframe",
	"submit_to_email":      "Form submission sends data to email address",
}

// Describe returns the human readable description of a feature, or the
// feature name itself when none is known
func Describe(feature string) string {
	if d, ok := descriptions[feature]; ok {
		return d
	}
	return feature
}

type contribution struct {
	reason core.Reason
	score  float64
}

// Explain returns up to topN reasons ordered by descending absolute
// value × importance. Equal contributions keep column order.
func Explain(vec core.FeatureVector, columns []string, importances core.ImportanceMap, topN int) []core.Reason {
	if topN <= 0 {
		topN = DefaultTopN
	}

	contribs := make([]contribution, 0, len(columns))
	for _, c := range columns {
		v := vec.Get(c)
		if v == 0 {
			continue
		}
		w := importances[c]
		contribs = append(contribs, contribution{
			reason: core.Reason{
				Feature:     c,
				Description: Describe(c),
				Value:       v,
				Weight:      w,
			},
			score: math.Abs(v * w),
		})
	}

	sort.SliceStable(contribs, func(i, j int) bool {
		return contribs[i].score > contribs[j].score
	})

	if len(contribs) > topN {
		contribs = contribs[:topN]
	}
	reasons := make([]core.Reason, len(contribs))
	for i, c := range contribs {
		reasons[i] = c.reason
	}
	return reasons
}

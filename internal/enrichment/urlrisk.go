package enrichment

import (
	"strings"
	"time"
	"unicode"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/features"
)

// HeuristicSource names verdicts produced without any network call
const HeuristicSource = "heuristic"

// Risk levels
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

var suspiciousTLDs = []string{".xyz", ".ru", ".tk", ".ml", ".ga", ".cf"}

// URLRisk scores a URL's host: one point each for a suspicious TLD, a digit
// and a hyphen
func URLRisk(url string) core.URLVerdict {
	host := features.URLHost(url)

	score := 0
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			score++
			break
		}
	}
	if strings.IndexFunc(host, unicode.IsDigit) >= 0 {
		score++
	}
	if strings.Contains(host, "-") {
		score++
	}

	return core.URLVerdict{
		URL:       url,
		Source:    HeuristicSource,
		Status:    core.StatusOK,
		RiskScore: score,
		RiskLevel: riskLevel(score),
		CheckedAt: time.Now(),
	}
}

func riskLevel(score int) string {
	switch {
	case score >= 2:
		return RiskHigh
	case score == 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

package enrichment

import (
	"strings"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/features"
)

// Header anomaly messages
const (
	AnomalyReturnPath  = "Return-Path mismatch with From"
	AnomalyReplyTo     = "Reply-To differs from From (may be phishing)"
	AnomalyNoReceived  = "Missing Received headers (may be suspicious relay)"
	AnomalyNoMessageID = "Missing Message-Id header"
)

// HeaderAnomalies lists human readable header inconsistencies
func HeaderAnomalies(msg *core.ParsedMessage) []string {
	var issues []string

	from := msg.HeaderOrEmpty("From")
	fromDomain := features.RegistrableDomain(from)

	if rp := msg.HeaderOrEmpty("Return-Path"); rp != "" && from != "" {
		rpDomain := features.RegistrableDomain(rp)
		if rpDomain != "" && rpDomain != fromDomain {
			issues = append(issues, AnomalyReturnPath)
		}
	}

	if rt := msg.HeaderOrEmpty("Reply-To"); rt != "" {
		if !strings.EqualFold(addressOf(rt), addressOf(from)) {
			issues = append(issues, AnomalyReplyTo)
		}
	}

	if msg.ReceivedCount() == 0 {
		issues = append(issues, AnomalyNoReceived)
	}
	if _, ok := msg.Header("Message-Id"); !ok {
		issues = append(issues, AnomalyNoMessageID)
	}

	return issues
}

// addressOf returns the bare address of a header, or the trimmed value
func addressOf(header string) string {
	header = strings.TrimSpace(header)
	if i := strings.LastIndexByte(header, '<'); i >= 0 {
		if j := strings.IndexByte(header[i:], '>'); j > 0 {
			return strings.TrimSpace(header[i+1 : i+j])
		}
	}
	return header
}

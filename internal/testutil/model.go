// Package testutil builds small trained models for package tests.
package testutil

import (
	"math/rand"
	"testing"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/dataset"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/forest"
	"github.com/mikey/phish-detector/internal/schema"
	"github.com/mikey/phish-detector/internal/scorer"
)

// Rows returns a synthetic labelled dataset where phishing rows carry raw IP
// links and lure keywords and legitimate rows do not
func Rows(n int, seed int64) []dataset.Row {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]dataset.Row, 0, 2*n)

	for i := 0; i < n; i++ {
		vec := core.NewFeatureVector()
		vec.Set(features.HasIPURL, 1)
		vec.Set(features.URLCount, float64(1+rng.Intn(3)))
		vec.Set(features.URLLengthAvg, float64(20+rng.Intn(40)))
		vec.Set(features.SuspiciousKeywords, float64(1+rng.Intn(4)))
		vec.Set(features.XMailerMissing, float64(rng.Intn(2)))
		vec.Set(features.SpoofedDisplayName, float64(rng.Intn(2)))
		vec.FromDomain = "phish.example"
		rows = append(rows, dataset.Row{Vector: vec, Label: core.LabelPhishing})
	}

	for i := 0; i < n; i++ {
		vec := core.NewFeatureVector()
		vec.Set(features.ReceivedCount, float64(1+rng.Intn(5)))
		vec.Set(features.URLCount, float64(rng.Intn(2)))
		vec.Set(features.XMailerMissing, float64(rng.Intn(2)))
		vec.FromDomain = "company.example"
		rows = append(rows, dataset.Row{Vector: vec, Label: core.LabelLegitimate})
	}

	dataset.Shuffle(rows, seed)
	return rows
}

// Model trains a small forest on Rows over the canonical schema
func Model(t testing.TB) *scorer.Model {
	t.Helper()

	reg := schema.Default()
	x, y := dataset.Matrix(reg, Rows(40, 1))

	p := forest.DefaultParams()
	p.Trees = 30
	p.Workers = 2
	f, err := forest.Fit(reg.Columns(), x, y, p)
	if err != nil {
		t.Fatalf("failed to train test forest: %v", err)
	}

	m, err := scorer.NewModel(f, reg)
	if err != nil {
		t.Fatalf("failed to build test model: %v", err)
	}
	return m
}

// PhishingMessage has a raw IP link, a lure keyword and a spoofed brand
const PhishingMessage = "From: PayPal <billing@paypal-support.xyz>\r\n" +
	"Subject: Your account is on hold\r\n" +
	"\r\n" +
	"Please verify your account at http://192.168.1.5/login\r\n"

// LegitimateMessage is an ordinary relayed note without links
const LegitimateMessage = "From: alice@company.com\r\n" +
	"Reply-To: alice@company.com\r\n" +
	"X-Mailer: Thunderbird\r\n" +
	"Received: from mx1.company.com\r\n" +
	"Received: from mx2.company.com\r\n" +
	"Subject: Lunch\r\n" +
	"\r\n" +
	"See you at noon.\r\n"

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	m := cfg.GetModel()
	if m.TopN != 5 || m.SchemaPath == "" {
		t.Errorf("GetModel() = %+v", m)
	}

	f := cfg.GetFeatures()
	if f.Brands["paypal"] != "paypal.com" || len(f.Shorteners) != 6 || len(f.Keywords) != 7 {
		t.Errorf("GetFeatures() = %+v", f)
	}

	s := cfg.GetServer()
	if s.Headers.Status != "X-Phish-Status" || s.FilterType != "http" || s.Debug {
		t.Errorf("GetServer() = %+v", s)
	}

	if e := cfg.GetEnrichment(); e.Enabled || e.Timeout != 20*time.Second {
		t.Errorf("GetEnrichment() = %+v", e)
	}
	if c := cfg.GetCache(); c.TTL != 24*time.Hour || c.Type != "memory" {
		t.Errorf("GetCache() = %+v", c)
	}
	if tr := cfg.GetTraining(); tr.Trees != 200 || tr.Seed != 42 || tr.TestFraction != 0.2 {
		t.Errorf("GetTraining() = %+v", tr)
	}
}

func TestMalformedDurationFallsBack(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("openphish.refresh", "soon")

	if got := cfg.GetOpenPhish().Refresh; got != time.Hour {
		t.Errorf("Refresh = %v, want fallback of 1h", got)
	}
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "model:\n  top_n: 3\nfeatures:\n  brands:\n    contoso: contoso.com\nvirustotal:\n  enabled: true\n  max_urls: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile() error = %v", err)
	}
	if cfg.GetModel().TopN != 3 {
		t.Errorf("TopN = %d", cfg.GetModel().TopN)
	}
	if b := cfg.GetFeatures().Brands; b["contoso"] != "contoso.com" {
		t.Errorf("Brands = %v", b)
	}
	if vt := cfg.GetVirusTotal(); !vt.Enabled || vt.MaxURLs != 2 || vt.MaxPolls != 2 {
		t.Errorf("GetVirusTotal() = %+v", vt)
	}

	if _, err := NewFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("NewFromFile() should fail for a missing file")
	}
}

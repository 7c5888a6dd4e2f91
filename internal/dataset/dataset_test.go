package dataset

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/features"
	"github.com/mikey/phish-detector/internal/schema"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBuildCountsFailures(t *testing.T) {
	root := t.TempDir()
	phish := filepath.Join(root, "phishing")
	legit := filepath.Join(root, "legitimate")

	good := "From: billing@paypal-support.xyz\n\nverify at http://192.168.1.5/login\n"
	bad := "this is not an email"

	phishFiles := map[string]string{}
	for i := 0; i < 6; i++ {
		phishFiles[fmt.Sprintf("p%d.eml", i)] = good
	}
	phishFiles["broken1.eml"] = bad
	phishFiles["broken2.eml"] = bad
	phishFiles["notes.txt"] = good
	writeFiles(t, phish, phishFiles)

	legitFiles := map[string]string{"l0.eml": "From: a@company.com\n\nhi\n", "l1.eml": bad, "l2.EML": "From: b@company.com\n\nhello\n"}
	writeFiles(t, legit, legitFiles)

	b := NewBuilder(features.NewExtractor(features.DefaultLexicon()), zap.NewNop(), Options{Workers: 3, Seed: 42})
	rows, summary, err := b.Build(context.Background(), []Source{
		{Dir: phish, Label: core.LabelPhishing},
		{Dir: legit, Label: core.LabelLegitimate},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// 11 eml files, 3 of them broken
	if len(rows) != 8 || summary.Processed != 8 {
		t.Errorf("rows = %d processed = %d, want 8", len(rows), summary.Processed)
	}
	if summary.Failed != 3 || len(summary.Failures) != 3 {
		t.Errorf("Failed = %d, want 3", summary.Failed)
	}
	if summary.PerLabel[core.LabelPhishing] != 6 || summary.PerLabel[core.LabelLegitimate] != 2 {
		t.Errorf("PerLabel = %v", summary.PerLabel)
	}
	for _, r := range rows {
		if r.Label == core.LabelPhishing && r.Vector.Get(features.HasIPURL) != 1 {
			t.Errorf("phishing row %s lost its features", r.Source)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("m%02d.eml", i)] = fmt.Sprintf("From: u%d@example.com\nReceived: x\n\nbody %d\n", i, i)
	}
	writeFiles(t, dir, files)

	sources := []Source{{Dir: dir, Label: core.LabelLegitimate}}
	run := func(workers int) []string {
		b := NewBuilder(features.NewExtractor(features.DefaultLexicon()), zap.NewNop(), Options{Workers: workers, Seed: 7})
		rows, _, err := b.Build(context.Background(), sources)
		if err != nil {
			t.Fatal(err)
		}
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Vector.FromDomain + r.Source
		}
		return out
	}

	a, c := run(1), run(6)
	if strings.Join(a, ",") != strings.Join(c, ",") {
		t.Errorf("row order depends on worker count")
	}
}

func TestBuildCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.eml": "From: a@b.com\n\nx\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(features.NewExtractor(features.DefaultLexicon()), zap.NewNop(), Options{})
	if _, _, err := b.Build(ctx, []Source{{Dir: dir}}); err == nil {
		t.Errorf("Build() expected a cancellation error")
	}
}

func TestBuildReadsMbox(t *testing.T) {
	dir := t.TempDir()
	mbox := "From a@b.com Mon Jan  1 00:00:00 2024\n" +
		"From: a@b.com\n\nfirst\n>From the archive\n\n" +
		"From c@d.com Mon Jan  1 00:00:00 2024\n" +
		"From: c@d.com\n\nsecond\n"
	writeFiles(t, dir, map[string]string{"box.mbox": mbox})

	b := NewBuilder(features.NewExtractor(features.DefaultLexicon()), zap.NewNop(), Options{Workers: 2})
	rows, summary, err := b.Build(context.Background(), []Source{{Dir: dir, Label: core.LabelPhishing}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || summary.Failed != 0 {
		t.Errorf("rows = %d failed = %d, want 2 and 0", len(rows), summary.Failed)
	}
}

func TestSplitMbox(t *testing.T) {
	data := "preamble\nFrom x\r\nA: 1\r\n\r\n>From quoted\r\nFrom y\nB: 2\n\nbody\n"
	msgs := SplitMbox([]byte(data))
	if len(msgs) != 2 {
		t.Fatalf("SplitMbox() returned %d messages", len(msgs))
	}
	if string(msgs[0]) != "A: 1\n\nFrom quoted\n" {
		t.Errorf("first message = %q", msgs[0])
	}
	if string(msgs[1]) != "B: 2\n\nbody\n" {
		t.Errorf("second message = %q", msgs[1])
	}
}

func TestCSVRoundTrip(t *testing.T) {
	reg := schema.Default()
	ex := features.NewExtractor(features.DefaultLexicon())

	raws := []string{
		"From: billing@paypal-support.xyz\n\nverify http://192.168.1.5/login https://bit.ly/abcdefg\n",
		"From: \"Alice, Ops\" <alice@company.com>\nReply-To: alice@company.com\nReceived: a\nReceived: b\n\nno links\n",
		"From: x@example.org\nContent-Type: text/html\n\n<a href=\"http://example.org/a/b/c?d=1\">x</a> http://example.org/é\n",
	}
	var rows []Row
	for i, raw := range raws {
		vec, err := ex.ExtractRaw([]byte(raw))
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, Row{Vector: vec, Label: core.Label(i % 2)})
	}

	var buf bytes.Buffer
	if err := Write(&buf, reg, rows); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.HasPrefix(header, "fromDomain,reply_to_differs,") || !strings.HasSuffix(header, ",submit_to_email,label") {
		t.Errorf("unexpected header %q", header)
	}

	readReg, readRows, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !readReg.Equal(reg) {
		t.Errorf("columns changed: %v", readReg.Columns())
	}
	if len(readRows) != len(rows) {
		t.Fatalf("read %d rows, want %d", len(readRows), len(rows))
	}
	for i := range rows {
		if readRows[i].Label != rows[i].Label || readRows[i].Vector.FromDomain != rows[i].Vector.FromDomain {
			t.Errorf("row %d metadata changed", i)
		}
		for _, c := range reg.Columns() {
			want, got := rows[i].Vector.Get(c), readRows[i].Vector.Get(c)
			if math.Abs(want-got) > 1e-9 {
				t.Errorf("row %d %s = %v, want %v", i, c, got, want)
			}
		}
	}
}

func TestExtractedRowsKeepFromDomain(t *testing.T) {
	extractor := features.NewExtractor(features.DefaultLexicon())
	messages := []struct {
		raw   string
		label core.Label
		want  string
	}{
		{"From: billing@paypal-support.xyz\n\nverify at http://192.168.1.5/login\n", core.LabelPhishing, "paypal-support.xyz"},
		{"From: Alice <alice@mx1.company.com>\nX-Mailer: Thunderbird\n\nSee you at noon.\n", core.LabelLegitimate, "company.com"},
	}

	var rows []Row
	for _, m := range messages {
		vec, err := extractor.ExtractRaw([]byte(m.raw))
		if err != nil {
			t.Fatalf("ExtractRaw() error = %v", err)
		}
		rows = append(rows, Row{Vector: vec, Label: m.label})
	}

	var buf bytes.Buffer
	if err := Write(&buf, schema.Default(), rows); err != nil {
		t.Fatal(err)
	}
	_, got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(got) != len(messages) {
		t.Fatalf("got %d rows, want %d", len(got), len(messages))
	}
	for i, m := range messages {
		if got[i].Vector.FromDomain != m.want {
			t.Errorf("row %d fromDomain = %q, want %q", i, got[i].Vector.FromDomain, m.want)
		}
		if got[i].Label != m.label {
			t.Errorf("row %d label = %v, want %v", i, got[i].Label, m.label)
		}
	}
}

func TestReadErrors(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"no label":      "fromDomain,url_count\nx.com,1\n",
		"bad value":     "url_count,label\nabc,1\n",
		"bad label":     "url_count,label\n1,2\n",
		"ragged record": "url_count,label\n1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Read(strings.NewReader(content)); err == nil {
				t.Errorf("Read() expected error")
			}
		})
	}
}

func TestReadLegacyHeader(t *testing.T) {
	content := "from_domain,url_count,has_ip_url,label\nevil.xyz,2,True,1\ngood.com,,False,0\n"
	reg, rows, err := Read(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := reg.Columns(); len(got) != 2 || got[0] != "url_count" || got[1] != "has_ip_url" {
		t.Errorf("Columns() = %v", got)
	}
	if rows[0].Vector.FromDomain != "evil.xyz" || rows[0].Vector.Get("has_ip_url") != 1 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Vector.Get("url_count") != 0 {
		t.Errorf("blank cell should read as 0")
	}
}

func TestStratifiedSplit(t *testing.T) {
	var rows []Row
	for i := 0; i < 50; i++ {
		label := core.LabelLegitimate
		if i < 10 {
			label = core.LabelPhishing
		}
		vec := core.NewFeatureVector()
		vec.Set("id", float64(i))
		rows = append(rows, Row{Vector: vec, Label: label})
	}

	train, test := StratifiedSplit(rows, 0.2, 42)
	if len(train)+len(test) != len(rows) {
		t.Fatalf("split lost rows: %d + %d", len(train), len(test))
	}

	count := func(rs []Row, l core.Label) int {
		n := 0
		for _, r := range rs {
			if r.Label == l {
				n++
			}
		}
		return n
	}
	if count(test, core.LabelPhishing) != 2 || count(test, core.LabelLegitimate) != 8 {
		t.Errorf("test set is not stratified: %d phishing, %d legitimate",
			count(test, core.LabelPhishing), count(test, core.LabelLegitimate))
	}

	seen := map[float64]bool{}
	for _, r := range append(train, test...) {
		id := r.Vector.Get("id")
		if seen[id] {
			t.Errorf("row %v appears twice", id)
		}
		seen[id] = true
	}
}

func TestEvaluate(t *testing.T) {
	truth := []int{1, 1, 1, 0, 0, 0, 0, 0}
	pred := []int{1, 1, 0, 0, 0, 0, 1, 0}

	ev := Evaluate(truth, pred)
	if ev.Accuracy != 0.75 {
		t.Errorf("Accuracy = %v", ev.Accuracy)
	}
	if ev.Confusion != [2][2]int{{4, 1}, {1, 2}} {
		t.Errorf("Confusion = %v", ev.Confusion)
	}
	phish := ev.Classes[1]
	if math.Abs(phish.Precision-2.0/3) > 1e-9 || math.Abs(phish.Recall-2.0/3) > 1e-9 || phish.Support != 3 {
		t.Errorf("phishing stats = %+v", phish)
	}
	if !strings.Contains(ev.String(), "accuracy: 0.7500") {
		t.Errorf("report missing accuracy:\n%s", ev.String())
	}
}

func TestRankImportances(t *testing.T) {
	got := RankImportances([]string{"a", "b", "c"}, []float64{0.2, 0.5, 0.3})
	if got[0].Feature != "b" || got[1].Feature != "c" || got[2].Feature != "a" {
		t.Errorf("RankImportances() = %+v", got)
	}
}

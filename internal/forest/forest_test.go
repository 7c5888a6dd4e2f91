package forest

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
)

// separable builds rows where only the first column decides the class
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		signal := rng.Float64()
		x[i] = []float64{signal, rng.Float64(), float64(rng.Intn(3))}
		if signal > 0.5 {
			y[i] = 1
		}
	}
	return x, y
}

func smallParams() Params {
	p := DefaultParams()
	p.Trees = 25
	p.MaxFeatures = 3
	p.Workers = 4
	return p
}

func TestFitLearnsSeparableData(t *testing.T) {
	cols := []string{"signal", "noise", "bucket"}
	x, y := separable(300, 1)

	f, err := Fit(cols, x, y, smallParams())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	tests := []struct {
		row  []float64
		want int
	}{
		{[]float64{0.95, 0.3, 1}, 1},
		{[]float64{0.05, 0.9, 2}, 0},
		{[]float64{0.8, 0.1, 0}, 1},
		{[]float64{0.2, 0.5, 1}, 0},
	}
	for _, tt := range tests {
		got, err := f.Predict(tt.row)
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("Predict(%v) = %d, want %d", tt.row, got, tt.want)
		}

		proba, err := f.PredictProba(tt.row)
		if err != nil {
			t.Fatalf("PredictProba() error = %v", err)
		}
		if math.Abs(proba[0]+proba[1]-1) > 1e-9 {
			t.Errorf("probabilities do not sum to 1: %v", proba)
		}
	}

	imp := f.FeatureImportances()
	sum := 0.0
	for _, v := range imp {
		if v < 0 {
			t.Errorf("negative importance %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum to %v, want 1", sum)
	}
	if imp[0] <= imp[1] || imp[0] <= imp[2] {
		t.Errorf("signal column should dominate importances: %v", imp)
	}
}

func TestFitIsDeterministic(t *testing.T) {
	cols := []string{"signal", "noise", "bucket"}
	x, y := separable(120, 7)

	p1 := smallParams()
	p1.Workers = 1
	p8 := smallParams()
	p8.Workers = 8

	a, err := Fit(cols, x, y, p1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fit(cols, x, y, p8)
	if err != nil {
		t.Fatal(err)
	}

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if !bytes.Equal(ja, jb) {
		t.Errorf("same seed produced different forests")
	}
}

func TestFitValidation(t *testing.T) {
	cols := []string{"a"}
	tests := []struct {
		name string
		x    [][]float64
		y    []int
		p    Params
	}{
		{"no rows", nil, nil, DefaultParams()},
		{"label count mismatch", [][]float64{{1}}, []int{0, 1}, DefaultParams()},
		{"ragged row", [][]float64{{1, 2}}, []int{0}, DefaultParams()},
		{"no trees", [][]float64{{1}}, []int{0}, Params{Trees: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(cols, tt.x, tt.y, tt.p); err == nil {
				t.Errorf("Fit() expected error")
			}
		})
	}
}

func TestFitSingleClass(t *testing.T) {
	f, err := Fit([]string{"a"}, [][]float64{{1}, {2}, {3}}, []int{1, 1, 1}, smallParams())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if got := f.Classes(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Classes() = %v, want [0 1]", got)
	}
	label, _ := f.Predict([]float64{2})
	if label != 1 {
		t.Errorf("Predict() = %d, want 1", label)
	}
}

func TestPredictTieGoesToFirstClass(t *testing.T) {
	f := &Forest{
		columns:     []string{"a"},
		classes:     []int{0, 1},
		importances: []float64{0},
		trees: []Tree{
			{Nodes: []Node{{Feature: -1, Value: []float64{1, 0}}}},
			{Nodes: []Node{{Feature: -1, Value: []float64{0, 1}}}},
		},
	}
	got, err := f.Predict([]float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("Predict() = %d, want 0 on a tie", got)
	}
	if _, err := f.Predict([]float64{0, 1}); err == nil {
		t.Errorf("Predict() should reject a row of the wrong width")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cols := []string{"signal", "noise", "bucket"}
	x, y := separable(100, 3)
	f, err := Fit(cols, x, y, smallParams())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := Save(f, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.NumTrees() != f.NumTrees() {
		t.Errorf("NumTrees() = %d, want %d", loaded.NumTrees(), f.NumTrees())
	}
	for _, row := range x[:20] {
		want, _ := f.PredictProba(row)
		got, _ := loaded.PredictProba(row)
		for k := range want {
			if want[k] != got[k] {
				t.Fatalf("probabilities changed after reload: %v vs %v", got, want)
			}
		}
	}
}

func TestLoadRejectsInvalidArtifacts(t *testing.T) {
	leaf := `{"f":-1,"v":[1,0]}`
	tests := map[string]string{
		"not json":         `{{`,
		"wrong format":     `{"format":"other","version":1,"columns":["a"],"classes":[0,1],"importances":[1],"trees":[{"nodes":[` + leaf + `]}]}`,
		"wrong version":    `{"format":"phishdetect-forest","version":9,"columns":["a"],"classes":[0,1],"importances":[1],"trees":[{"nodes":[` + leaf + `]}]}`,
		"no trees":         `{"format":"phishdetect-forest","version":1,"columns":["a"],"classes":[0,1],"importances":[1],"trees":[]}`,
		"bad leaf width":   `{"format":"phishdetect-forest","version":1,"columns":["a"],"classes":[0,1],"importances":[1],"trees":[{"nodes":[{"f":-1,"v":[1]}]}]}`,
		"child cycle":      `{"format":"phishdetect-forest","version":1,"columns":["a"],"classes":[0,1],"importances":[1],"trees":[{"nodes":[{"f":0,"t":0.5,"l":0,"r":1},` + leaf + `]}]}`,
		"unknown column":   `{"format":"phishdetect-forest","version":1,"columns":["a"],"classes":[0,1],"importances":[1],"trees":[{"nodes":[{"f":3,"t":0.5,"l":1,"r":2},` + leaf + `,` + leaf + `]}]}`,
		"shifted classes":  `{"format":"phishdetect-forest","version":1,"columns":["a"],"classes":[1,2],"importances":[1],"trees":[{"nodes":[` + leaf + `]}]}`,
		"reversed classes": `{"format":"phishdetect-forest","version":1,"columns":["a"],"classes":[1,0],"importances":[1],"trees":[{"nodes":[` + leaf + `]}]}`,
		"importance len":   `{"format":"phishdetect-forest","version":1,"columns":["a"],"classes":[0,1],"importances":[],"trees":[{"nodes":[` + leaf + `]}]}`,
	}

	dir := t.TempDir()
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "m.json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); !errors.Is(err, ErrInvalidArtifact) {
				t.Errorf("Load() error = %v, want ErrInvalidArtifact", err)
			}
		})
	}
}

package forest

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

const (
	artifactFormat  = "phishdetect-forest"
	artifactVersion = 1
)

// ErrInvalidArtifact is returned for model files that cannot be used
var ErrInvalidArtifact = errors.New("invalid forest artifact")

type artifact struct {
	Format      string    `json:"format"`
	Version     int       `json:"version"`
	Columns     []string  `json:"columns"`
	Classes     []int     `json:"classes"`
	Importances []float64 `json:"importances"`
	Trees       []Tree    `json:"trees"`
}

// MarshalJSON encodes the forest as a versioned artifact
func (f *Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(artifact{
		Format:      artifactFormat,
		Version:     artifactVersion,
		Columns:     f.columns,
		Classes:     f.classes,
		Importances: f.importances,
		Trees:       f.trees,
	})
}

// UnmarshalJSON decodes and validates an artifact
func (f *Forest) UnmarshalJSON(data []byte) error {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if err := a.validate(); err != nil {
		return err
	}

	f.columns = a.Columns
	f.classes = a.Classes
	f.importances = a.Importances
	f.trees = a.Trees
	return nil
}

func (a *artifact) validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidArtifact, fmt.Sprintf(format, args...))
	}

	if a.Format != artifactFormat {
		return invalid("unexpected format %q", a.Format)
	}
	if a.Version != artifactVersion {
		return invalid("unsupported version %d", a.Version)
	}
	if len(a.Columns) == 0 {
		return invalid("no columns")
	}
	if len(a.Classes) != 2 || a.Classes[0] != 0 || a.Classes[1] != 1 {
		return invalid("classes must be [0 1], got %v", a.Classes)
	}
	if len(a.Importances) != len(a.Columns) {
		return invalid("%d importances for %d columns", len(a.Importances), len(a.Columns))
	}
	for i, imp := range a.Importances {
		if imp < 0 {
			return invalid("negative importance for column %d", i)
		}
	}
	if len(a.Trees) == 0 {
		return invalid("no trees")
	}

	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return invalid("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				if len(n.Value) != len(a.Classes) {
					return invalid("tree %d leaf %d has %d values for %d classes", ti, ni, len(n.Value), len(a.Classes))
				}
				continue
			}
			if n.Feature >= len(a.Columns) {
				return invalid("tree %d node %d splits on unknown column %d", ti, ni, n.Feature)
			}
			// Children always follow their parent, so traversal terminates
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return invalid("tree %d node %d has out of range children", ti, ni)
			}
		}
	}
	return nil
}

// Save writes the forest artifact to path
func Save(f *Forest, path string) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode forest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write forest %s: %w", path, err)
	}
	return nil
}

// Load reads a forest artifact from path
func Load(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read forest %s: %w", path, err)
	}
	f := &Forest{}
	if err := f.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return f, nil
}

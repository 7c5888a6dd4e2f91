// Package schema owns the ordered feature columns shared by training and
// serving, and the versioned artifact that pins them next to a model.
package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/features"
)

// Reserved dataset columns that never feed the classifier
const (
	LabelColumn            = "label"
	FromDomainColumn       = "fromDomain"
	legacyFromDomainColumn = "from_domain"
)

// CurrentVersion is the artifact format version written by Save
const CurrentVersion = 1

// Registry is an immutable ordered list of feature columns
type Registry struct {
	version int
	columns []string
	index   map[string]int
}

type artifact struct {
	Version int      `json:"version"`
	Columns []string `json:"columns"`
}

// New creates a registry over the given columns
func New(columns []string) (*Registry, error) {
	if len(columns) == 0 {
		return nil, core.SchemaMismatch("schema has no feature columns", nil)
	}

	index := make(map[string]int, len(columns))
	cols := make([]string, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, core.SchemaMismatch(fmt.Sprintf("empty column name at position %d", i), nil)
		}
		if isReserved(c) {
			return nil, core.SchemaMismatch(fmt.Sprintf("reserved column %q cannot be a feature", c), nil)
		}
		if _, dup := index[c]; dup {
			return nil, core.SchemaMismatch(fmt.Sprintf("duplicate column %q", c), nil)
		}
		index[c] = i
		cols[i] = c
	}

	return &Registry{version: CurrentVersion, columns: cols, index: index}, nil
}

// Default returns the registry of the extractor's canonical columns
func Default() *Registry {
	r, err := New(features.Columns())
	if err != nil {
		panic(fmt.Sprintf("canonical feature columns are invalid: %v", err))
	}
	return r
}

// FromHeader derives the registry from a dataset header row. The label
// column is required, reserved columns are removed and the rest keep
// their order.
func FromHeader(header []string) (*Registry, error) {
	hasLabel := false
	cols := make([]string, 0, len(header))
	for _, h := range header {
		h = strings.TrimSpace(h)
		if h == LabelColumn {
			hasLabel = true
		}
		if isReserved(h) {
			continue
		}
		cols = append(cols, h)
	}
	if !hasLabel {
		return nil, core.SchemaMismatch("dataset header has no label column", nil)
	}
	return New(cols)
}

func isReserved(name string) bool {
	return name == LabelColumn || name == FromDomainColumn || name == legacyFromDomainColumn
}

// Version returns the artifact version of the registry
func (r *Registry) Version() int {
	return r.version
}

// Columns returns a copy of the ordered columns
func (r *Registry) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of feature columns
func (r *Registry) Len() int {
	return len(r.columns)
}

// Index returns the position of a column and whether it exists
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Align produces the dense row for a vector: missing columns are 0 and
// values the registry does not know are dropped
func (r *Registry) Align(vec core.FeatureVector) []float64 {
	row := make([]float64, len(r.columns))
	for i, c := range r.columns {
		row[i] = vec.Values[c]
	}
	return row
}

// Validate checks that a model was trained on exactly these columns, in order
func (r *Registry) Validate(modelColumns []string) error {
	if len(modelColumns) != len(r.columns) {
		return core.SchemaMismatch(
			fmt.Sprintf("model expects %d columns, schema has %d", len(modelColumns), len(r.columns)), nil)
	}
	for i, c := range modelColumns {
		if c != r.columns[i] {
			return core.SchemaMismatch(
				fmt.Sprintf("column %d: model expects %q, schema has %q", i, c, r.columns[i]), nil)
		}
	}
	return nil
}

// Equal reports whether two registries hold the same ordered columns
func (r *Registry) Equal(other *Registry) bool {
	return other != nil && r.Validate(other.columns) == nil
}

// Marshal encodes the registry as its versioned JSON artifact
func (r *Registry) Marshal() ([]byte, error) {
	return json.MarshalIndent(artifact{Version: r.version, Columns: r.columns}, "", "  ")
}

// Unmarshal decodes a versioned JSON artifact
func Unmarshal(data []byte) (*Registry, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, core.SchemaMismatch("schema artifact is not valid JSON", err)
	}
	if a.Version != CurrentVersion {
		return nil, core.SchemaMismatch(fmt.Sprintf("unsupported schema version %d", a.Version), nil)
	}
	return New(a.Columns)
}

// Save writes the artifact to path
func Save(r *Registry, path string) error {
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema %s: %w", path, err)
	}
	return nil
}

// Load reads an artifact written by Save
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	return Unmarshal(data)
}

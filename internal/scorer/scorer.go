// Package scorer wraps a trained classifier into the immutable model handle
// shared by every request.
package scorer

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/forest"
	"github.com/mikey/phish-detector/internal/schema"
)

// Scorer turns a dense row into a label and a confidence
type Scorer struct {
	classifier core.Classifier
}

// New creates a scorer for a classifier
func New(classifier core.Classifier) *Scorer {
	return &Scorer{classifier: classifier}
}

// Score predicts the label of a row. The confidence is the probability of the
// predicted class, rounded to 4 decimal places.
func (s *Scorer) Score(row []float64) (core.Label, float64, error) {
	class, err := s.classifier.Predict(row)
	if err != nil {
		return core.LabelLegitimate, 0, fmt.Errorf("failed to predict: %w", err)
	}
	proba, err := s.classifier.PredictProba(row)
	if err != nil {
		return core.LabelLegitimate, 0, fmt.Errorf("failed to predict probabilities: %w", err)
	}

	label := core.Label(class)
	if label != core.LabelLegitimate && label != core.LabelPhishing {
		return core.LabelLegitimate, 0, fmt.Errorf("classifier returned unknown class %d", class)
	}
	idx := classIndex(s.classifier.Classes(), class)
	if idx < 0 || idx >= len(proba) {
		return core.LabelLegitimate, 0, fmt.Errorf("classifier returned %d probabilities for class %d", len(proba), class)
	}

	return label, roundConfidence(proba[idx]), nil
}

// classIndex returns the position of class in classes, or -1
func classIndex(classes []int, class int) int {
	for i, c := range classes {
		if c == class {
			return i
		}
	}
	return -1
}

// binaryClasses reports whether classes are exactly the two labels in order
func binaryClasses(classes []int) bool {
	return len(classes) == 2 &&
		classes[0] == int(core.LabelLegitimate) &&
		classes[1] == int(core.LabelPhishing)
}

func roundConfidence(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	return math.Round(p*1e4) / 1e4
}

// Model is the process-wide handle: a scorer, the schema it was trained on and
// the importance table used for explanations. It is never mutated after
// construction.
type Model struct {
	*Scorer
	registry    *schema.Registry
	importances core.ImportanceMap
}

// NewModel binds a classifier to its schema, failing with SchemaMismatch when
// the classifier was trained on different columns and with ModelUnavailable
// when its classes are not the two labels
func NewModel(classifier core.Classifier, registry *schema.Registry) (*Model, error) {
	if classes := classifier.Classes(); !binaryClasses(classes) {
		return nil, core.ModelUnavailable(fmt.Sprintf("classifier classes %v, want [0 1]", classes), nil)
	}
	if err := registry.Validate(classifier.Columns()); err != nil {
		return nil, err
	}

	weights := classifier.FeatureImportances()
	if len(weights) != registry.Len() {
		return nil, core.SchemaMismatch(
			fmt.Sprintf("classifier reports %d importances for %d columns", len(weights), registry.Len()), nil)
	}

	importances := make(core.ImportanceMap, len(weights))
	for i, c := range registry.Columns() {
		importances[c] = math.Max(0, weights[i])
	}

	return &Model{
		Scorer:      New(classifier),
		registry:    registry,
		importances: importances,
	}, nil
}

// LoadModel reads the forest and schema artifacts. A missing or unreadable
// artifact is ModelUnavailable, a column disagreement is SchemaMismatch.
func LoadModel(modelPath, schemaPath string) (*Model, error) {
	f, err := forest.Load(modelPath)
	if err != nil {
		return nil, core.ModelUnavailable(fmt.Sprintf("cannot load model %s", modelPath), err)
	}

	registry, err := schema.Load(schemaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ModelUnavailable(fmt.Sprintf("schema %s not found", schemaPath), err)
		}
		return nil, err
	}

	return NewModel(f, registry)
}

// Registry returns the schema the model was trained on
func (m *Model) Registry() *schema.Registry {
	return m.registry
}

// Columns returns the ordered feature columns
func (m *Model) Columns() []string {
	return m.registry.Columns()
}

// Importances returns a copy of the importance table
func (m *Model) Importances() core.ImportanceMap {
	out := make(core.ImportanceMap, len(m.importances))
	for k, v := range m.importances {
		out[k] = v
	}
	return out
}

// Importance returns the weight of one feature
func (m *Model) Importance(feature string) float64 {
	return m.importances[feature]
}

// ScoreVector aligns a vector to the schema and scores it
func (m *Model) ScoreVector(vec core.FeatureVector) (core.Label, float64, error) {
	return m.Score(m.registry.Align(vec))
}

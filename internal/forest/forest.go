// Package forest implements the random forest classifier used to score
// feature vectors, and its JSON artifact format.
package forest

import (
	"fmt"
)

// Node is one decision node. Leaves have Feature == -1 and carry the class
// distribution of their training samples in Value.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

// IsLeaf reports whether the node terminates a path
func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a flat pre-order list of nodes rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) leaf(row []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a trained ensemble. It is read-only after construction and safe
// for concurrent use.
type Forest struct {
	columns     []string
	classes     []int
	importances []float64
	trees       []Tree
}

// Columns returns the feature order the forest was trained on
func (f *Forest) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Classes returns the class labels, in probability order
func (f *Forest) Classes() []int {
	out := make([]int, len(f.classes))
	copy(out, f.classes)
	return out
}

// FeatureImportances returns the normalized mean decrease in impurity per column
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, len(f.importances))
	copy(out, f.importances)
	return out
}

// NumTrees returns the ensemble size
func (f *Forest) NumTrees() int {
	return len(f.trees)
}

// PredictProba averages the leaf class distributions of every tree
func (f *Forest) PredictProba(row []float64) ([]float64, error) {
	if len(row) != len(f.columns) {
		return nil, fmt.Errorf("row has %d values, model expects %d", len(row), len(f.columns))
	}

	proba := make([]float64, len(f.classes))
	for _, t := range f.trees {
		for k, v := range t.leaf(row) {
			proba[k] += v
		}
	}
	for k := range proba {
		proba[k] /= float64(len(f.trees))
	}
	return proba, nil
}

// Predict returns the most probable class. Ties go to the first class.
func (f *Forest) Predict(row []float64) (int, error) {
	proba, err := f.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return f.classes[argmax(proba)], nil
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

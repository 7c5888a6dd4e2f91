package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// ClassStats holds one class's precision and recall
type ClassStats struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Evaluation summarizes predictions against true labels
type Evaluation struct {
	Accuracy  float64
	Classes   []ClassStats
	Confusion [2][2]int // [actual][predicted] for labels 0 and 1
}

// Evaluate compares predicted labels to the truth
func Evaluate(truth, predicted []int) Evaluation {
	var ev Evaluation
	if len(truth) == 0 || len(truth) != len(predicted) {
		return ev
	}

	correct := 0
	for i := range truth {
		if truth[i] == predicted[i] {
			correct++
		}
		if inRange(truth[i]) && inRange(predicted[i]) {
			ev.Confusion[truth[i]][predicted[i]]++
		}
	}
	ev.Accuracy = float64(correct) / float64(len(truth))

	for label := 0; label < 2; label++ {
		tp := ev.Confusion[label][label]
		fp := ev.Confusion[1-label][label]
		fn := ev.Confusion[label][1-label]

		s := ClassStats{Label: label, Support: tp + fn}
		if tp+fp > 0 {
			s.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			s.Recall = float64(tp) / float64(tp+fn)
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		ev.Classes = append(ev.Classes, s)
	}
	return ev
}

func inRange(label int) bool {
	return label == 0 || label == 1
}

// String renders a plain text classification report
func (ev Evaluation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-12s %10s %10s %10s %10s\n", "class", "precision", "recall", "f1", "support")
	for _, c := range ev.Classes {
		name := "legitimate"
		if c.Label == 1 {
			name = "phishing"
		}
		fmt.Fprintf(&sb, "%-12s %10.4f %10.4f %10.4f %10d\n", name, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&sb, "\naccuracy: %.4f\n", ev.Accuracy)
	fmt.Fprintf(&sb, "confusion [actual x predicted]: %v\n", ev.Confusion)
	return sb.String()
}

// RankedImportance is one feature with its weight
type RankedImportance struct {
	Feature    string
	Importance float64
}

// RankImportances sorts features by descending importance
func RankImportances(columns []string, importances []float64) []RankedImportance {
	out := make([]RankedImportance, 0, len(columns))
	for i, c := range columns {
		if i < len(importances) {
			out = append(out, RankedImportance{Feature: c, Importance: importances[i]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

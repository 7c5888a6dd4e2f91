package core

// Classifier is the contract of a trained ensemble model
type Classifier interface {
	// Columns returns the feature order the model was trained on
	Columns() []string

	// Classes returns the class labels in PredictProba order
	Classes() []int

	// Predict returns the discrete class for one dense row
	Predict(row []float64) (int, error)

	// PredictProba returns one probability per class for one dense row
	PredictProba(row []float64) ([]float64, error)

	// FeatureImportances returns one non-negative weight per column
	FeatureImportances() []float64
}

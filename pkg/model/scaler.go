package model

import "fmt"

// Scaler is a fitted standard scaler. It is shipped with the model and validated on
// load, but inference uses raw numeric features because the classifier was fitted on
// unscaled columns.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Width is the number of columns the scaler was fitted on.
func (s *Scaler) Width() int {
	return len(s.Mean)
}

func (s *Scaler) validate(vocabularyWidth int) error {
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler has %d means and %d scales", len(s.Mean), len(s.Scale))
	}
	if w := s.Width(); w != NumericFeatureCount && w != vocabularyWidth+NumericFeatureCount {
		return fmt.Errorf("scaler width %d matches neither the numeric features (%d) nor the full vector (%d)",
			w, NumericFeatureCount, vocabularyWidth+NumericFeatureCount)
	}
	return nil
}

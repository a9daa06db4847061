package model

import (
	"fmt"

	"github.com/zpam/spam-detect/pkg/apperr"
)

// Probabilities is the classifier output resolved to named classes.
type Probabilities struct {
	Ham  float64 `json:"ham"`
	Spam float64 `json:"spam"`
}

// ClassifierAdapter resolves which probability column belongs to which class.
// When the classifier declares the numeric labels {0, 1} the mapping follows the
// labels (1 = spam). For any other encoding it falls back to column order:
// column 0 is spam, column 1 is ham.
type ClassifierAdapter struct {
	classifier Classifier
	spamIndex  int
	hamIndex   int
	byLabel    bool
}

func NewClassifierAdapter(classifier Classifier) (*ClassifierAdapter, error) {
	if classifier == nil {
		return nil, apperr.ModelUnavailable("classifier not loaded")
	}

	classes := classifier.Classes()
	if len(classes) != 2 {
		return nil, apperr.ModelUnavailable(fmt.Sprintf("expected 2 classes, got %d", len(classes)))
	}

	a := &ClassifierAdapter{classifier: classifier, spamIndex: 0, hamIndex: 1}

	first, ok1 := binaryLabel(classes[0])
	second, ok2 := binaryLabel(classes[1])
	if ok1 && ok2 && first != second {
		a.byLabel = true
		if first == 1 {
			a.spamIndex, a.hamIndex = 0, 1
		} else {
			a.spamIndex, a.hamIndex = 1, 0
		}
	}

	return a, nil
}

// binaryLabel reports whether v is the number 0 or 1.
func binaryLabel(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}

	switch f {
	case 0:
		return 0, true
	case 1:
		return 1, true
	}
	return 0, false
}

// ByLabel is false when the positional fallback is in use.
func (a *ClassifierAdapter) ByLabel() bool {
	return a.byLabel
}

// Score runs the classifier once and returns ham/spam probabilities.
func (a *ClassifierAdapter) Score(x FeatureVector) (Probabilities, error) {
	if a == nil || a.classifier == nil {
		return Probabilities{}, apperr.ModelUnavailable("classifier not loaded")
	}

	proba, err := a.classifier.PredictProba(x)
	if err != nil {
		return Probabilities{}, err
	}
	if len(proba) != 2 {
		return Probabilities{}, fmt.Errorf("classifier returned %d probabilities, expected 2", len(proba))
	}

	return Probabilities{
		Ham:  proba[a.hamIndex],
		Spam: proba[a.spamIndex],
	}, nil
}

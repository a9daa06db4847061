package model

import (
	"fmt"
	"math"

	json "github.com/goccy/go-json"
)

// Classifier types understood by the artifact loader.
const (
	TypeLogisticRegression = "logistic_regression"
	TypeMultinomialNB      = "multinomial_nb"
)

// Classifier is a fitted probabilistic model over FeatureVectors.
// PredictProba returns one probability per entry of Classes, in the same order.
type Classifier interface {
	Type() string
	Classes() []any
	NumFeatures() int
	PredictProba(x FeatureVector) ([]float64, error)
}

// classifierHeader is decoded first to pick the concrete type.
type classifierHeader struct {
	Type string `json:"type"`
}

// DecodeClassifier builds a Classifier from its JSON artifact.
func DecodeClassifier(data []byte) (Classifier, error) {
	var header classifierHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to decode classifier: %w", err)
	}

	switch header.Type {
	case TypeLogisticRegression:
		var lr LogisticRegression
		if err := json.Unmarshal(data, &lr); err != nil {
			return nil, fmt.Errorf("failed to decode logistic regression: %w", err)
		}
		if err := lr.validate(); err != nil {
			return nil, err
		}
		return &lr, nil
	case TypeMultinomialNB:
		var nb MultinomialNB
		if err := json.Unmarshal(data, &nb); err != nil {
			return nil, fmt.Errorf("failed to decode naive bayes: %w", err)
		}
		if err := nb.validate(); err != nil {
			return nil, err
		}
		return &nb, nil
	case "":
		return nil, fmt.Errorf("classifier artifact has no type")
	default:
		return nil, fmt.Errorf("unsupported classifier type %q", header.Type)
	}
}

// LogisticRegression is a linear model. A single coefficient row is the binary
// case and scores classes[1]; several rows are combined with softmax.
type LogisticRegression struct {
	Labels    []any       `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

func (m *LogisticRegression) Type() string   { return TypeLogisticRegression }
func (m *LogisticRegression) Classes() []any { return m.Labels }

func (m *LogisticRegression) NumFeatures() int {
	if len(m.Coef) == 0 {
		return 0
	}
	return len(m.Coef[0])
}

func (m *LogisticRegression) validate() error {
	if len(m.Coef) == 0 {
		return fmt.Errorf("logistic regression has no coefficients")
	}
	if len(m.Intercept) != len(m.Coef) {
		return fmt.Errorf("logistic regression has %d intercepts for %d coefficient rows", len(m.Intercept), len(m.Coef))
	}
	for i, row := range m.Coef {
		if len(row) != len(m.Coef[0]) {
			return fmt.Errorf("coefficient row %d has width %d, expected %d", i, len(row), len(m.Coef[0]))
		}
	}

	want := len(m.Coef)
	if want == 1 {
		want = 2
	}
	if len(m.Labels) != want {
		return fmt.Errorf("logistic regression declares %d classes, coefficients imply %d", len(m.Labels), want)
	}
	return nil
}

func (m *LogisticRegression) PredictProba(x FeatureVector) ([]float64, error) {
	if x.Width != m.NumFeatures() {
		return nil, fmt.Errorf("feature width %d does not match model width %d", x.Width, m.NumFeatures())
	}

	if len(m.Coef) == 1 {
		p := sigmoid(x.Dot(m.Coef[0]) + m.Intercept[0])
		return []float64{1 - p, p}, nil
	}

	scores := make([]float64, len(m.Coef))
	for i, row := range m.Coef {
		scores[i] = x.Dot(row) + m.Intercept[i]
	}
	return softmax(scores), nil
}

// MultinomialNB is a fitted multinomial naive Bayes model.
type MultinomialNB struct {
	Labels         []any       `json:"classes"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
}

func (m *MultinomialNB) Type() string   { return TypeMultinomialNB }
func (m *MultinomialNB) Classes() []any { return m.Labels }

func (m *MultinomialNB) NumFeatures() int {
	if len(m.FeatureLogProb) == 0 {
		return 0
	}
	return len(m.FeatureLogProb[0])
}

func (m *MultinomialNB) validate() error {
	n := len(m.Labels)
	if n == 0 {
		return fmt.Errorf("naive bayes declares no classes")
	}
	if len(m.ClassLogPrior) != n || len(m.FeatureLogProb) != n {
		return fmt.Errorf("naive bayes has %d priors and %d likelihood rows for %d classes",
			len(m.ClassLogPrior), len(m.FeatureLogProb), n)
	}
	for i, row := range m.FeatureLogProb {
		if len(row) != len(m.FeatureLogProb[0]) {
			return fmt.Errorf("likelihood row %d has width %d, expected %d", i, len(row), len(m.FeatureLogProb[0]))
		}
	}
	return nil
}

func (m *MultinomialNB) PredictProba(x FeatureVector) ([]float64, error) {
	if x.Width != m.NumFeatures() {
		return nil, fmt.Errorf("feature width %d does not match model width %d", x.Width, m.NumFeatures())
	}

	jll := make([]float64, len(m.Labels))
	for i := range jll {
		jll[i] = m.ClassLogPrior[i] + x.Dot(m.FeatureLogProb[i])
	}
	return softmax(jll), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

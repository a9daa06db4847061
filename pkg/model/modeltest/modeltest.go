// Package modeltest builds a small, fully deterministic model for tests.
//
// The vocabulary has ten spam-leaning and ten ham-leaning words plus two bigrams.
// All idf weights are 1 and the intercept is 0, so text without known words scores
// exactly 0.5 unless it contains upper-case letters (which lean spam).
package modeltest

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/zpam/spam-detect/pkg/model"
)

var (
	SpamWords = []string{"free", "money", "click", "now", "win", "prize", "winner", "cash", "offer", "urgent"}
	HamWords  = []string{"meeting", "tomorrow", "project", "report", "team", "lunch", "schedule", "thanks", "attached", "review"}
)

const (
	spamBigram = "free money"
	hamBigram  = "project report"

	wordWeight      = 2.5
	bigramWeight    = 1.5
	uppercaseWeight = 3.0
)

// VectorizerSpec returns the toy TF-IDF artifact.
func VectorizerSpec() model.VectorizerSpec {
	vocab := make(map[string]int)
	for _, w := range SpamWords {
		vocab[w] = len(vocab)
	}
	for _, w := range HamWords {
		vocab[w] = len(vocab)
	}
	vocab[spamBigram] = len(vocab)
	vocab[hamBigram] = len(vocab)

	idf := make([]float64, len(vocab))
	for i := range idf {
		idf[i] = 1
	}

	return model.VectorizerSpec{
		Vocabulary:   vocab,
		IDF:          idf,
		NgramRange:   [2]int{1, 2},
		Norm:         "l2",
		TokenPattern: `(?u)\b\w\w+\b`,
	}
}

// spamWeights is the coefficient row scoring the spam class.
func spamWeights(spec model.VectorizerSpec) []float64 {
	width := len(spec.Vocabulary)
	w := make([]float64, width+model.NumericFeatureCount)
	for _, term := range SpamWords {
		w[spec.Vocabulary[term]] = wordWeight
	}
	for _, term := range HamWords {
		w[spec.Vocabulary[term]] = -wordWeight
	}
	w[spec.Vocabulary[spamBigram]] = bigramWeight
	w[spec.Vocabulary[hamBigram]] = -bigramWeight
	w[width+2] = uppercaseWeight
	return w
}

// LogisticRegression returns a binary model with the given declared classes.
// When spamFirst is true the coefficient row scores classes[0], otherwise classes[1].
func LogisticRegression(classes []any, spamFirst bool) *model.LogisticRegression {
	w := spamWeights(VectorizerSpec())
	if spamFirst {
		for i := range w {
			w[i] = -w[i]
		}
	}
	return &model.LogisticRegression{
		Labels:    classes,
		Coef:      [][]float64{w},
		Intercept: []float64{0},
	}
}

// Scaler returns a scaler over the three numeric columns.
func Scaler() *model.Scaler {
	return &model.Scaler{
		Mean:  []float64{120, 20, 0.05},
		Scale: []float64{80, 12, 0.1},
	}
}

// Artifacts returns the toy model with classes [0, 1] (1 = spam).
func Artifacts(t testing.TB) *model.Artifacts {
	t.Helper()
	return ArtifactsWith(t, LogisticRegression([]any{0.0, 1.0}, false))
}

// ArtifactsWith pairs the toy vectorizer and scaler with a custom classifier.
func ArtifactsWith(t testing.TB, classifier model.Classifier) *model.Artifacts {
	t.Helper()

	vectorizer, err := model.NewVectorizer(VectorizerSpec())
	if err != nil {
		t.Fatalf("toy vectorizer: %v", err)
	}
	artifacts, err := model.New(vectorizer, Scaler(), classifier)
	if err != nil {
		t.Fatalf("toy artifacts: %v", err)
	}
	artifacts.Info.Fingerprint = "modeltest"
	return artifacts
}

// WriteDir writes the toy artifacts as JSON under a fresh temp directory and returns it.
func WriteDir(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	lr := LogisticRegression([]any{0, 1}, false)

	write := func(name string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write(model.DefaultVectorizerFile, VectorizerSpec())
	write(model.DefaultScalerFile, Scaler())
	write(model.DefaultClassifierFile, map[string]any{
		"type":      model.TypeLogisticRegression,
		"classes":   lr.Labels,
		"coef":      lr.Coef,
		"intercept": lr.Intercept,
	})
	return dir
}

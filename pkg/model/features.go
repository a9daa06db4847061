package model

import (
	"unicode"
	"unicode/utf8"

	"github.com/zpam/spam-detect/pkg/apperr"
	"github.com/zpam/spam-detect/pkg/textnorm"
)

// NumericFeatures are the scalar columns appended after the TF-IDF block.
type NumericFeatures struct {
	TextLength     float64 `json:"text_length"`
	WordCount      float64 `json:"word_count"`
	UppercaseRatio float64 `json:"uppercase_ratio"`
}

func (n NumericFeatures) slice() []float64 {
	return []float64{n.TextLength, n.WordCount, n.UppercaseRatio}
}

// ComputeNumeric derives the numeric features. Lengths are taken from the
// normalized text; the upper-case ratio needs the original casing.
func ComputeNumeric(normalized, original string) NumericFeatures {
	total := utf8.RuneCountInString(original)
	upper := 0
	for _, r := range original {
		if unicode.IsUpper(r) {
			upper++
		}
	}

	return NumericFeatures{
		TextLength:     float64(utf8.RuneCountInString(normalized)),
		WordCount:      float64(textnorm.WordCount(normalized)),
		UppercaseRatio: float64(upper) / float64(max(1, total)),
	}
}

// FeatureBuilder produces the classifier input for one email.
type FeatureBuilder struct {
	vectorizer *Vectorizer
}

func NewFeatureBuilder(vectorizer *Vectorizer) *FeatureBuilder {
	return &FeatureBuilder{vectorizer: vectorizer}
}

// Build returns [tfidf(normalized)] ++ [text_length, word_count, uppercase_ratio].
func (b *FeatureBuilder) Build(normalized, original string) (FeatureVector, error) {
	if b == nil || b.vectorizer == nil {
		return FeatureVector{}, apperr.ModelUnavailable("vectorizer not loaded")
	}

	lexical := b.vectorizer.Transform(normalized)
	return hstack(lexical, ComputeNumeric(normalized, original).slice()), nil
}

// Width is the length of every vector Build returns.
func (b *FeatureBuilder) Width() int {
	return b.vectorizer.Width() + NumericFeatureCount
}

package model

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// defaultTokenPattern matches runs of two or more word characters.
const defaultTokenPattern = `\b\w\w+\b`

// VectorizerSpec is the on-disk form of a fitted TF-IDF vectorizer.
type VectorizerSpec struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	NgramRange   [2]int         `json:"ngram_range"`
	Lowercase    *bool          `json:"lowercase"`
	UseIDF       *bool          `json:"use_idf"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Norm         string         `json:"norm"`
	TokenPattern string         `json:"token_pattern"`
	StopWords    []string       `json:"stop_words"`
}

// Vectorizer turns one document into a TF-IDF weighted sparse row.
type Vectorizer struct {
	vocabulary  map[string]int
	idf         []float64
	minN, maxN  int
	lowercase   bool
	useIDF      bool
	sublinearTF bool
	norm        string
	token       *regexp.Regexp
	stopWords   map[string]struct{}
}

// NewVectorizer validates a spec and compiles it.
func NewVectorizer(spec VectorizerSpec) (*Vectorizer, error) {
	width := len(spec.Vocabulary)
	if width == 0 {
		return nil, fmt.Errorf("vectorizer vocabulary is empty")
	}

	seen := make([]bool, width)
	for term, idx := range spec.Vocabulary {
		if idx < 0 || idx >= width {
			return nil, fmt.Errorf("vocabulary index %d for %q out of range [0,%d)", idx, term, width)
		}
		if seen[idx] {
			return nil, fmt.Errorf("vocabulary index %d assigned twice", idx)
		}
		seen[idx] = true
	}

	v := &Vectorizer{
		vocabulary:  spec.Vocabulary,
		idf:         spec.IDF,
		minN:        spec.NgramRange[0],
		maxN:        spec.NgramRange[1],
		lowercase:   spec.Lowercase == nil || *spec.Lowercase,
		useIDF:      spec.UseIDF == nil || *spec.UseIDF,
		sublinearTF: spec.SublinearTF,
		norm:        strings.ToLower(spec.Norm),
		stopWords:   make(map[string]struct{}, len(spec.StopWords)),
	}

	if v.minN == 0 && v.maxN == 0 {
		v.minN, v.maxN = 1, 1
	}
	if v.minN < 1 || v.maxN < v.minN {
		return nil, fmt.Errorf("invalid ngram_range [%d, %d]", v.minN, v.maxN)
	}

	if v.useIDF && len(v.idf) != width {
		return nil, fmt.Errorf("idf has %d entries, vocabulary has %d", len(v.idf), width)
	}

	switch v.norm {
	case "", "l2":
		v.norm = "l2"
	case "l1", "none":
	default:
		return nil, fmt.Errorf("unsupported norm %q", spec.Norm)
	}

	pattern := spec.TokenPattern
	if pattern == "" {
		pattern = defaultTokenPattern
	}
	// Go regexp has no unicode flag; \w is ASCII, which covers normalized text.
	pattern = strings.ReplaceAll(pattern, "(?u)", "")
	token, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid token_pattern: %w", err)
	}
	v.token = token

	for _, w := range spec.StopWords {
		v.stopWords[w] = struct{}{}
	}

	return v, nil
}

// Width is the vocabulary size, i.e. the lexical part of every feature vector.
func (v *Vectorizer) Width() int {
	return len(v.vocabulary)
}

// Transform vectorizes a single document.
func (v *Vectorizer) Transform(doc string) FeatureVector {
	if v.lowercase {
		doc = strings.ToLower(doc)
	}

	counts := make(map[int]float64)
	for _, term := range v.terms(doc) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}

	out := FeatureVector{
		Width:   v.Width(),
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)

	for _, idx := range out.Indices {
		tf := counts[idx]
		if v.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		if v.useIDF {
			tf *= v.idf[idx]
		}
		out.Values = append(out.Values, tf)
	}

	v.normalize(out.Values)
	return out
}

// terms tokenizes, removes stop words and expands word n-grams.
func (v *Vectorizer) terms(doc string) []string {
	var tokens []string
	for _, tok := range v.token.FindAllString(doc, -1) {
		if _, stop := v.stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}

	if v.maxN == 1 {
		return tokens
	}

	var terms []string
	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

func (v *Vectorizer) normalize(values []float64) {
	var total float64
	switch v.norm {
	case "l2":
		for _, x := range values {
			total += x * x
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range values {
			total += math.Abs(x)
		}
	default:
		return
	}

	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}

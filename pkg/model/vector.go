package model

import "sort"

// NumericFeatureCount is the number of derived scalar features appended after the
// lexical part: text_length, word_count, uppercase_ratio.
const NumericFeatureCount = 3

// FeatureVector is a sparse row vector. Indices are strictly increasing and < Width.
type FeatureVector struct {
	Width   int
	Indices []int
	Values  []float64
}

// Dot returns the inner product with a dense weight row of length Width.
func (v FeatureVector) Dot(weights []float64) float64 {
	sum := 0.0
	for i, idx := range v.Indices {
		if idx < len(weights) {
			sum += weights[idx] * v.Values[i]
		}
	}
	return sum
}

// At returns the value stored at column idx, or 0.
func (v FeatureVector) At(idx int) float64 {
	i := sort.SearchInts(v.Indices, idx)
	if i < len(v.Indices) && v.Indices[i] == idx {
		return v.Values[i]
	}
	return 0
}

// Dense expands the vector. Used by tests and diagnostics only.
func (v FeatureVector) Dense() []float64 {
	out := make([]float64, v.Width)
	for i, idx := range v.Indices {
		out[idx] = v.Values[i]
	}
	return out
}

// hstack appends dense columns after the sparse part, keeping zero entries out.
func hstack(sparse FeatureVector, dense []float64) FeatureVector {
	out := FeatureVector{
		Width:   sparse.Width + len(dense),
		Indices: make([]int, len(sparse.Indices), len(sparse.Indices)+len(dense)),
		Values:  make([]float64, len(sparse.Values), len(sparse.Values)+len(dense)),
	}
	copy(out.Indices, sparse.Indices)
	copy(out.Values, sparse.Values)

	for i, value := range dense {
		if value == 0 {
			continue
		}
		out.Indices = append(out.Indices, sparse.Width+i)
		out.Values = append(out.Values, value)
	}
	return out
}

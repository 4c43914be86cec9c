package facematch

import "math"

// Distance returns the Euclidean distance between two embeddings.
// Embeddings of different or zero length are infinitely far apart.
func Distance(a, b Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Matches reports whether candidate is within tol of reference.
func Matches(reference, candidate Embedding, tol Tolerance) bool {
	return Distance(reference, candidate) <= float64(tol)
}

// FirstMatch returns the index and distance of the first candidate within
// tol of reference. The remaining candidates are not compared.
func FirstMatch(reference Embedding, candidates []Embedding, tol Tolerance) (int, float64, bool) {
	for i, c := range candidates {
		if d := Distance(reference, c); d <= float64(tol) {
			return i, d, true
		}
	}
	return -1, math.Inf(1), false
}

package enrich

import "math"

// UpperTail returns P(X >= k) for X ~ Hypergeometric(N, K, n): the chance of at
// least k marked items when drawing n of N items, K of which are marked.
// Terms are formed in log space and summed from the far tail inwards, so the
// result never increases with k.
func UpperTail(k, N, K, n int) float64 {
	if k <= 0 {
		return 1
	}
	if N <= 0 || K <= 0 || n <= 0 {
		return 0
	}
	K = min(K, N)
	n = min(n, N)
	hi := min(K, n)
	if k > hi {
		return 0
	}
	lo := max(k, n-(N-K))

	norm := logChoose(N, n)
	var p float64
	for i := hi; i >= lo; i-- {
		p += math.Exp(logChoose(K, i) + logChoose(N-K, n-i) - norm)
	}
	return math.Min(1, math.Max(0, p))
}

func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	return lgamma(n+1) - lgamma(k+1) - lgamma(n-k+1)
}

func lgamma(x int) float64 {
	v, _ := math.Lgamma(float64(x))
	return v
}

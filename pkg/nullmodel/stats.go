package nullmodel

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/DrSkyle/kgexplain/pkg/graph"
	"github.com/DrSkyle/kgexplain/pkg/paths"
)

// Stats summarises one node set.
type Stats struct {
	IDs []string `json:"ids"`

	// AveragePairwiseDistance is the mean hop distance over reachable pairs.
	AveragePairwiseDistance float64 `json:"average_pairwise_distance"`
	MeanDegree              float64 `json:"degree_mean"`
	StdDegree               float64 `json:"degree_std"`
	// Clustering is the mean local clustering coefficient; nodes of degree < 2 count 0.
	Clustering     float64 `json:"clustering"`
	AverageJaccard float64 `json:"average_jaccard"`

	// AverageTargetDistance is set when targets were given, over reachable
	// (node, target) pairs.
	AverageTargetDistance *float64 `json:"average_target_distance,omitempty"`

	DisconnectedPairs   int `json:"disconnected_pairs"`
	DisconnectedTargets int `json:"disconnected_targets,omitempty"`
}

// Compute derives the statistics of set. Unreachable pairs are counted and left
// out of the distance averages; an average over no reachable pair is 0.
func Compute(cache *paths.Cache, set, targets []uint32) Stats {
	g := cache.Graph()
	st := Stats{IDs: g.IDs(set)}

	var sum, pairs int
	for i, a := range set {
		others := set[i+1:]
		if g.Directed() {
			others = make([]uint32, 0, len(set)-1)
			others = append(others, set[:i]...)
			others = append(others, set[i+1:]...)
		}
		for _, d := range cache.DistancesFromIndex(a, others) {
			if d == paths.Infinity {
				st.DisconnectedPairs++
				continue
			}
			sum += d
			pairs++
		}
	}
	if pairs > 0 {
		st.AveragePairwiseDistance = float64(sum) / float64(pairs)
	}

	degrees := make([]float64, len(set))
	for i, v := range set {
		degrees[i] = float64(g.DegreeAt(v))
	}
	if len(set) > 0 {
		st.MeanDegree, st.StdDegree = stat.PopMeanStdDev(degrees, nil)
	}

	var clustering float64
	for _, v := range set {
		clustering += localClustering(g, v)
	}
	if len(set) > 0 {
		st.Clustering = clustering / float64(len(set))
	}

	var jaccard float64
	var jPairs int
	for i := range set {
		for j := i + 1; j < len(set); j++ {
			jaccard += Jaccard(g, set[i], set[j])
			jPairs++
		}
	}
	if jPairs > 0 {
		st.AverageJaccard = jaccard / float64(jPairs)
	}

	if len(targets) > 0 {
		var tSum, tPairs int
		for _, v := range set {
			for _, d := range cache.DistancesFromIndex(v, targets) {
				if d == paths.Infinity {
					st.DisconnectedTargets++
					continue
				}
				tSum += d
				tPairs++
			}
		}
		avg := 0.0
		if tPairs > 0 {
			avg = float64(tSum) / float64(tPairs)
		}
		st.AverageTargetDistance = &avg
	}
	return st
}

// localClustering is triangles(v) / (deg(v) choose 2).
func localClustering(g *graph.Store, v uint32) float64 {
	nbs := g.NeighborIndexes(v)
	k := len(nbs)
	if k < 2 {
		return 0
	}
	var links int
	for _, u := range nbs {
		links += intersect(nbs, g.NeighborIndexes(u))
	}
	// Every triangle edge was seen from both endpoints.
	return float64(links) / float64(k*(k-1))
}

// Jaccard is |N(a) ∩ N(b)| / |N(a) ∪ N(b)|, 0 when both are isolated.
func Jaccard(g *graph.Store, a, b uint32) float64 {
	na, nb := g.NeighborIndexes(a), g.NeighborIndexes(b)
	union := len(na) + len(nb)
	if union == 0 {
		return 0
	}
	common := intersect(na, nb)
	return float64(common) / float64(union-common)
}

// intersect counts common elements of two ascending slices.
func intersect(a, b []uint32) int {
	var n, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}

// Moments is the mean and sample standard deviation of one statistic.
type Moments struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	N    int     `json:"n"`
}

// Summary aggregates a null distribution.
type Summary struct {
	Samples                 int      `json:"samples"`
	AveragePairwiseDistance Moments  `json:"average_pairwise_distance"`
	MeanDegree              Moments  `json:"degree_mean"`
	StdDegree               Moments  `json:"degree_std"`
	Clustering              Moments  `json:"clustering"`
	AverageJaccard          Moments  `json:"average_jaccard"`
	AverageTargetDistance   *Moments `json:"average_target_distance,omitempty"`
	DisconnectedPairs       int      `json:"disconnected_pairs"`
}

// Summarize computes the moments of every statistic across records.
func Summarize(records []Stats) Summary {
	s := Summary{Samples: len(records)}
	col := func(f func(Stats) float64) Moments {
		x := make([]float64, len(records))
		for i, r := range records {
			x[i] = f(r)
		}
		return moments(x)
	}
	s.AveragePairwiseDistance = col(func(r Stats) float64 { return r.AveragePairwiseDistance })
	s.MeanDegree = col(func(r Stats) float64 { return r.MeanDegree })
	s.StdDegree = col(func(r Stats) float64 { return r.StdDegree })
	s.Clustering = col(func(r Stats) float64 { return r.Clustering })
	s.AverageJaccard = col(func(r Stats) float64 { return r.AverageJaccard })

	var target []float64
	for _, r := range records {
		s.DisconnectedPairs += r.DisconnectedPairs
		if r.AverageTargetDistance != nil {
			target = append(target, *r.AverageTargetDistance)
		}
	}
	if len(target) > 0 {
		m := moments(target)
		s.AverageTargetDistance = &m
	}
	return s
}

func moments(x []float64) Moments {
	m := Moments{N: len(x)}
	switch len(x) {
	case 0:
	case 1:
		m.Mean = x[0]
	default:
		m.Mean, m.Std = stat.MeanStdDev(x, nil)
	}
	return m
}

// ZScore places an observed value against a null distribution. A zero-variance
// null yields 0 for an equal value and a signed infinity otherwise.
func ZScore(observed float64, null Moments) float64 {
	if null.Std == 0 {
		switch {
		case observed == null.Mean:
			return 0
		case observed > null.Mean:
			return math.Inf(1)
		default:
			return math.Inf(-1)
		}
	}
	return (observed - null.Mean) / null.Std
}

package clustering

import (
	"fmt"
	"math"
	"sort"
)

// Noise is the sentinel label for observations not assigned to any cluster.
const Noise = -1

// unclassified marks points not yet visited during the scan.
const unclassified = -2

// Params are the two DBSCAN tuning knobs.
type Params struct {
	// Eps is the maximum distance between two points for one to be
	// considered in the neighborhood of the other.
	Eps float64
	// MinSamples is the minimum neighborhood size (the point itself
	// included) required to form a dense region.
	MinSamples int
}

// DBSCAN runs density-based clustering over the embedding set with the
// given distance function. It returns one label per input vector:
// cluster ids numbered from 0, or Noise.
//
// The resulting partition is deterministic for a fixed input order, and
// the core-point partition is independent of it; label numbers carry no
// meaning across runs and must be remapped before persistence.
func DBSCAN(embeddings [][]float32, dist DistanceFunc, p Params) ([]int, error) {
	n := len(embeddings)
	if n == 0 {
		return []int{}, nil
	}
	if p.Eps <= 0 {
		return nil, fmt.Errorf("dbscan: eps must be positive, got %v", p.Eps)
	}
	if p.MinSamples < 1 {
		return nil, fmt.Errorf("dbscan: min samples must be at least 1, got %d", p.MinSamples)
	}

	dim := len(embeddings[0])
	for i, e := range embeddings {
		if len(e) != dim {
			return nil, fmt.Errorf("dbscan: embedding %d has dimension %d, want %d", i, len(e), dim)
		}
		for _, v := range e {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, fmt.Errorf("dbscan: embedding %d contains a non-finite component", i)
			}
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = unclassified
	}

	neighbors := func(idx int) []int {
		var hood []int
		for j := 0; j < n; j++ {
			if dist(embeddings[idx], embeddings[j]) <= p.Eps {
				hood = append(hood, j)
			}
		}
		return hood
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unclassified {
			continue
		}

		hood := neighbors(i)
		if len(hood) < p.MinSamples {
			labels[i] = Noise
			continue
		}

		labels[i] = clusterID
		seeds := append([]int(nil), hood...)
		for s := 0; s < len(seeds); s++ {
			q := seeds[s]
			if labels[q] == Noise {
				// border point previously dismissed as noise
				labels[q] = clusterID
			}
			if labels[q] != unclassified {
				continue
			}
			labels[q] = clusterID

			qHood := neighbors(q)
			if len(qHood) >= p.MinSamples {
				seeds = append(seeds, qHood...)
			}
		}
		clusterID++
	}

	return labels, nil
}

// Groups collects the member indices of each cluster (noise excluded),
// ordered by descending size, ties broken by the smallest member index.
// The ordering is stable across runs over the same partition and is the
// display position persisted with the clusters.
func Groups(labels []int) [][]int {
	byLabel := make(map[int][]int)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
	}

	groups := make([][]int, 0, len(byLabel))
	for _, members := range byLabel {
		groups = append(groups, members)
	}

	// Member slices are built in index order, so members[0] is already
	// each group's smallest index.
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
	return groups
}

package quality

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/lumapix/facegraph/internal/clustering"
	"github.com/lumapix/facegraph/internal/domain"
)

// ClusteringWeights blend the statistical metrics into the composite
// clustering quality. They must sum to 1.0.
type ClusteringWeights struct {
	Silhouette    float64
	DaviesBouldin float64
	Noise         float64
	Compactness   float64
}

func DefaultClusteringWeights() ClusteringWeights {
	return ClusteringWeights{
		Silhouette:    0.40,
		DaviesBouldin: 0.30,
		Noise:         0.20,
		Compactness:   0.10,
	}
}

func (w ClusteringWeights) Sum() float64 {
	return w.Silhouette + w.DaviesBouldin + w.Noise + w.Compactness
}

func (w ClusteringWeights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("clustering quality weights must sum to 1.0, got %v", w.Sum())
	}
	return nil
}

// ClusteringThresholds hold the diagnostic bands for the clustering
// metrics and the rule-based tuning suggestions.
type ClusteringThresholds struct {
	SilhouetteFair    float64 // below this the partition is poorly separated
	DaviesBouldinFair float64 // above this clusters overlap badly
	NoiseAcceptable   float64
	NoiseModerate     float64
	OverclusterNoise  float64 // noise below this plus many tiny clusters hints at over-clustering
	NearSingletonSize int
	LabelExcellent    float64
	LabelGood         float64
	LabelFair         float64
}

func DefaultClusteringThresholds() ClusteringThresholds {
	return ClusteringThresholds{
		SilhouetteFair:    0.25,
		DaviesBouldinFair: 1.5,
		NoiseAcceptable:   0.15,
		NoiseModerate:     0.30,
		OverclusterNoise:  0.05,
		NearSingletonSize: 2,
		LabelExcellent:    80,
		LabelGood:         60,
		LabelFair:         40,
	}
}

// ClusteringAnalyzer scores the statistical quality of a full clustering
// result. It never fails: degenerate inputs (all noise, a single
// cluster) produce sentinel metric values and explicit suggestions
// instead of errors.
type ClusteringAnalyzer struct {
	weights ClusteringWeights
	thr     ClusteringThresholds
	logger  *slog.Logger
}

func NewClusteringAnalyzer(weights ClusteringWeights, thr ClusteringThresholds, logger *slog.Logger) (*ClusteringAnalyzer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &ClusteringAnalyzer{
		weights: weights,
		thr:     thr,
		logger:  logger,
	}, nil
}

// Analyze computes separation/cohesion statistics for the labelled
// embedding set. labels uses clustering.Noise for unassigned points.
func (a *ClusteringAnalyzer) Analyze(embeddings [][]float32, labels []int, dist clustering.DistanceFunc) domain.ClusterQualityMetrics {
	metrics := domain.ClusterQualityMetrics{
		QualityLabel: domain.QualityPoor,
		PerCluster:   map[int]domain.PerClusterMetrics{},
	}

	if len(labels) == 0 || len(embeddings) != len(labels) {
		if len(embeddings) != len(labels) {
			a.logger.Warn("clustering quality: embeddings and labels disagree",
				"embeddings", len(embeddings),
				"labels", len(labels),
			)
		}
		metrics.TuningSuggestions = []string{suggestionInsufficientData}
		return metrics
	}

	members := map[int][]int{}
	noise := 0
	for i, l := range labels {
		if l == clustering.Noise {
			noise++
			continue
		}
		members[l] = append(members[l], i)
	}

	metrics.ClusterCount = len(members)
	metrics.NoiseCount = noise
	metrics.NoiseRatio = float64(noise) / float64(len(labels))

	if metrics.ClusterCount == 0 {
		metrics.TuningSuggestions = []string{suggestionInsufficientData}
		return metrics
	}

	// Deterministic iteration order for every statistic below.
	labelOrder := make([]int, 0, len(members))
	for l := range members {
		labelOrder = append(labelOrder, l)
	}
	sort.Ints(labelOrder)

	centroids := map[int][]float32{}
	scatter := map[int]float64{} // mean distance to centroid
	for _, l := range labelOrder {
		vectors := make([][]float32, len(members[l]))
		for i, idx := range members[l] {
			vectors[i] = embeddings[idx]
		}
		c := clustering.Centroid(vectors)
		centroids[l] = c

		var sumDist, sumSq float64
		for _, idx := range members[l] {
			d := dist(embeddings[idx], c)
			sumDist += d
			sumSq += d * d
		}
		count := float64(len(members[l]))
		scatter[l] = sumDist / count

		metrics.PerCluster[l] = domain.PerClusterMetrics{
			Size:        len(members[l]),
			Compactness: sumSq / count,
		}
		metrics.AvgClusterCompactness += sumSq / count
	}
	metrics.AvgClusterCompactness /= float64(metrics.ClusterCount)

	if metrics.ClusterCount >= 2 {
		metrics.SilhouetteScore = a.silhouette(embeddings, labels, labelOrder, members, dist)
		metrics.DaviesBouldinIndex = a.daviesBouldin(labelOrder, centroids, scatter, dist)
		a.fillSeparation(&metrics, labelOrder, centroids, dist)
	}

	metrics.OverallQuality = a.overall(&metrics)
	metrics.QualityLabel = domain.LabelForScore(metrics.OverallQuality,
		a.thr.LabelExcellent, a.thr.LabelGood, a.thr.LabelFair)
	metrics.TuningSuggestions = a.suggestions(&metrics, labelOrder, members)

	return metrics
}

// silhouette computes the mean silhouette coefficient over non-noise
// points. Points in singleton clusters contribute zero.
func (a *ClusteringAnalyzer) silhouette(embeddings [][]float32, labels []int, labelOrder []int, members map[int][]int, dist clustering.DistanceFunc) float64 {
	var total float64
	counted := 0

	for i, own := range labels {
		if own == clustering.Noise {
			continue
		}
		counted++

		sameSize := len(members[own])
		if sameSize <= 1 {
			continue // s(i) = 0 by convention
		}

		var intra float64
		for _, j := range members[own] {
			if j != i {
				intra += dist(embeddings[i], embeddings[j])
			}
		}
		intra /= float64(sameSize - 1)

		inter := math.MaxFloat64
		for _, other := range labelOrder {
			if other == own {
				continue
			}
			var d float64
			for _, j := range members[other] {
				d += dist(embeddings[i], embeddings[j])
			}
			d /= float64(len(members[other]))
			if d < inter {
				inter = d
			}
		}

		if denom := math.Max(intra, inter); denom > 0 {
			total += (inter - intra) / denom
		}
	}

	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

// daviesBouldin averages, over clusters, the worst ratio of combined
// scatter to centroid distance. Lower is better. Coincident centroids
// drive the index toward the cap instead of dividing by zero.
func (a *ClusteringAnalyzer) daviesBouldin(labelOrder []int, centroids map[int][]float32, scatter map[int]float64, dist clustering.DistanceFunc) float64 {
	const dbCap = 100.0

	var sum float64
	for _, c := range labelOrder {
		worst := 0.0
		for _, d := range labelOrder {
			if c == d {
				continue
			}
			centroidDist := dist(centroids[c], centroids[d])
			ratio := dbCap
			if centroidDist > 1e-12 {
				ratio = (scatter[c] + scatter[d]) / centroidDist
			}
			if ratio > worst {
				worst = ratio
			}
		}
		sum += math.Min(worst, dbCap)
	}
	return sum / float64(len(labelOrder))
}

func (a *ClusteringAnalyzer) fillSeparation(metrics *domain.ClusterQualityMetrics, labelOrder []int, centroids map[int][]float32, dist clustering.DistanceFunc) {
	var pairSum float64
	pairs := 0

	for i, c := range labelOrder {
		nearest := math.MaxFloat64
		for j, d := range labelOrder {
			if i == j {
				continue
			}
			cd := dist(centroids[c], centroids[d])
			if cd < nearest {
				nearest = cd
			}
			if j > i {
				pairSum += cd
				pairs++
			}
		}
		pc := metrics.PerCluster[c]
		pc.Separation = nearest
		metrics.PerCluster[c] = pc
	}

	if pairs > 0 {
		metrics.AvgClusterSeparation = pairSum / float64(pairs)
	}
}

// overall maps the metrics onto 0-100. Silhouette and Davies-Bouldin
// use a neutral midpoint when undefined (fewer than two clusters) so a
// single-cluster result is neither rewarded nor punished for them.
func (a *ClusteringAnalyzer) overall(m *domain.ClusterQualityMetrics) float64 {
	silComponent := 50.0
	dbComponent := 50.0
	if m.ClusterCount >= 2 {
		silComponent = clamp01((m.SilhouetteScore+1)/2) * 100
		dbComponent = clamp01(1-m.DaviesBouldinIndex/2) * 100
	}
	noiseComponent := (1 - m.NoiseRatio) * 100
	compactComponent := clamp01(1-m.AvgClusterCompactness) * 100

	return a.weights.Silhouette*silComponent +
		a.weights.DaviesBouldin*dbComponent +
		a.weights.Noise*noiseComponent +
		a.weights.Compactness*compactComponent
}

const (
	suggestionInsufficientData = "no clusters found: insufficient data, or eps/min_samples are too strict for this collection"
	suggestionNoTuning         = "clustering quality is good, no tuning needed"
)

// suggestions produces the ordered, human-readable tuning advice. It is
// advisory output only and never feeds back into the parameters.
func (a *ClusteringAnalyzer) suggestions(m *domain.ClusterQualityMetrics, labelOrder []int, members map[int][]int) []string {
	var out []string

	tiny := 0
	for _, l := range labelOrder {
		if len(members[l]) <= a.thr.NearSingletonSize {
			tiny++
		}
	}
	manyTiny := m.ClusterCount > 1 && tiny*2 >= m.ClusterCount

	overclustered := m.NoiseRatio < a.thr.OverclusterNoise && manyTiny
	if overclustered {
		out = append(out, fmt.Sprintf(
			"likely over-clustering: noise is under %.0f%% but %d of %d clusters are near-singletons; increase eps or raise min_samples",
			a.thr.OverclusterNoise*100, tiny, m.ClusterCount))
	}

	switch {
	case m.NoiseRatio > a.thr.NoiseModerate:
		out = append(out, fmt.Sprintf(
			"%.0f%% of observations are noise: relax eps or lower min_samples",
			m.NoiseRatio*100))
	case m.NoiseRatio > a.thr.NoiseAcceptable:
		out = append(out, fmt.Sprintf(
			"noise ratio %.0f%% is moderate: consider a slightly larger eps",
			m.NoiseRatio*100))
	}

	if m.ClusterCount >= 2 {
		if m.SilhouetteScore < a.thr.SilhouetteFair {
			out = append(out, fmt.Sprintf(
				"silhouette %.2f is low: clusters overlap, try adjusting eps in either direction",
				m.SilhouetteScore))
		}
		if m.DaviesBouldinIndex > a.thr.DaviesBouldinFair {
			out = append(out, fmt.Sprintf(
				"Davies-Bouldin index %.2f is high: merge overlapping clusters with a larger eps or adjust min_samples",
				m.DaviesBouldinIndex))
		}
	} else {
		out = append(out,
			"only one cluster was found: silhouette and Davies-Bouldin are undefined, consider a smaller eps")
	}

	if manyTiny && !overclustered {
		out = append(out, fmt.Sprintf(
			"%d of %d clusters are near-singletons: raise min_samples to suppress fragments",
			tiny, m.ClusterCount))
	}

	if len(out) == 0 {
		out = append(out, suggestionNoTuning)
	}
	return out
}

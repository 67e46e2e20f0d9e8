package domain

// QualityLabel is a coarse human-readable band for a 0-100 quality score.
type QualityLabel string

const (
	QualityExcellent QualityLabel = "excellent"
	QualityGood      QualityLabel = "good"
	QualityFair      QualityLabel = "fair"
	QualityPoor      QualityLabel = "poor"
)

// LabelForScore maps a 0-100 score onto a label using the given band
// boundaries. Boundaries are inclusive: a score exactly at a boundary
// takes the higher band.
func LabelForScore(score, excellent, good, fair float64) QualityLabel {
	switch {
	case score >= excellent:
		return QualityExcellent
	case score >= good:
		return QualityGood
	case score >= fair:
		return QualityFair
	default:
		return QualityPoor
	}
}

// FaceQualityMetrics is the visual quality assessment of one face crop.
type FaceQualityMetrics struct {
	// BlurScore is a Laplacian-variance sharpness measure, unbounded >= 0,
	// higher is sharper. Reported raw, not rescaled to 0-100.
	BlurScore      float64      `json:"blur_score"`
	LightingScore  float64      `json:"lighting_score"`
	SizeScore      float64      `json:"size_score"`
	AspectRatio    float64      `json:"aspect_ratio"`
	OverallQuality float64      `json:"overall_quality"`
	QualityLabel   QualityLabel `json:"quality_label"`
	IsGoodQuality  bool         `json:"is_good_quality"`
}

// PerClusterMetrics holds the cohesion/separation numbers for a single
// cluster inside a clustering result.
type PerClusterMetrics struct {
	Size        int     `json:"size"`
	Compactness float64 `json:"compactness"`
	Separation  float64 `json:"separation"`
}

// ClusterQualityMetrics is the statistical assessment of an entire
// clustering result. Silhouette and Davies-Bouldin are reported as 0
// when they are mathematically undefined (fewer than two clusters);
// the tuning suggestions call that out explicitly.
type ClusterQualityMetrics struct {
	SilhouetteScore       float64                   `json:"silhouette_score"`
	DaviesBouldinIndex    float64                   `json:"davies_bouldin_index"`
	AvgClusterCompactness float64                   `json:"avg_cluster_compactness"`
	AvgClusterSeparation  float64                   `json:"avg_cluster_separation"`
	ClusterCount          int                       `json:"cluster_count"`
	NoiseCount            int                       `json:"noise_count"`
	NoiseRatio            float64                   `json:"noise_ratio"`
	OverallQuality        float64                   `json:"overall_quality"`
	QualityLabel          QualityLabel              `json:"quality_label"`
	PerCluster            map[int]PerClusterMetrics `json:"per_cluster"`
	TuningSuggestions     []string                  `json:"tuning_suggestions"`
}

package config

import (
	"fmt"
	"math"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// weightEpsilon is the tolerance for weight sets that must sum to 1.0.
const weightEpsilon = 1e-9

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Clustering parameters
	ClusterEps        float64 `envconfig:"CLUSTER_EPS" default:"0.42"`
	ClusterMinSamples int     `envconfig:"CLUSTER_MIN_SAMPLES" default:"3"`
	DistanceMetric    string  `envconfig:"DISTANCE_METRIC" default:"cosine"`
	// EmbeddingDim pins the expected vector dimensionality; 0 infers it
	// from the first usable observation of each run.
	EmbeddingDim int `envconfig:"EMBEDDING_DIM" default:"0"`

	// Representative selection
	RepQualityThreshold float64 `envconfig:"REP_QUALITY_THRESHOLD" default:"60"`
	RepQualityWeight    float64 `envconfig:"REP_QUALITY_WEIGHT" default:"0.70"`
	RepProximityWeight  float64 `envconfig:"REP_PROXIMITY_WEIGHT" default:"0.30"`
	RepMinConfidence    float64 `envconfig:"REP_MIN_CONFIDENCE" default:"0.5"`
	RepMinSizeScore     float64 `envconfig:"REP_MIN_SIZE_SCORE" default:"40"`

	// Face quality weights
	FaceBlurWeight       float64 `envconfig:"FACE_BLUR_WEIGHT" default:"0.30"`
	FaceLightingWeight   float64 `envconfig:"FACE_LIGHTING_WEIGHT" default:"0.25"`
	FaceSizeWeight       float64 `envconfig:"FACE_SIZE_WEIGHT" default:"0.20"`
	FaceAspectWeight     float64 `envconfig:"FACE_ASPECT_WEIGHT" default:"0.10"`
	FaceConfidenceWeight float64 `envconfig:"FACE_CONFIDENCE_WEIGHT" default:"0.15"`

	// Face quality thresholds
	FaceGoodQuality   float64 `envconfig:"FACE_GOOD_QUALITY" default:"60"`
	FaceBlurBlurry    float64 `envconfig:"FACE_BLUR_BLURRY" default:"50"`
	FaceBlurGood      float64 `envconfig:"FACE_BLUR_GOOD" default:"100"`
	FaceBlurExcellent float64 `envconfig:"FACE_BLUR_EXCELLENT" default:"500"`
	FaceBrightnessMin float64 `envconfig:"FACE_BRIGHTNESS_MIN" default:"80"`
	FaceBrightnessMax float64 `envconfig:"FACE_BRIGHTNESS_MAX" default:"170"`
	FaceContrastMin   float64 `envconfig:"FACE_CONTRAST_MIN" default:"30"`
	FaceClippingMax   float64 `envconfig:"FACE_CLIPPING_MAX" default:"0.05"`

	// Clustering quality weights
	CqSilhouetteWeight    float64 `envconfig:"CQ_SILHOUETTE_WEIGHT" default:"0.40"`
	CqDaviesBouldinWeight float64 `envconfig:"CQ_DAVIES_BOULDIN_WEIGHT" default:"0.30"`
	CqNoiseWeight         float64 `envconfig:"CQ_NOISE_WEIGHT" default:"0.20"`
	CqCompactnessWeight   float64 `envconfig:"CQ_COMPACTNESS_WEIGHT" default:"0.10"`

	// Quality label bands, shared by both analyzers
	LabelExcellent float64 `envconfig:"QUALITY_LABEL_EXCELLENT" default:"80"`
	LabelGood      float64 `envconfig:"QUALITY_LABEL_GOOD" default:"60"`
	LabelFair      float64 `envconfig:"QUALITY_LABEL_FAIR" default:"40"`

	// Run registry
	RunRetention       time.Duration `envconfig:"RUN_RETENTION" default:"1h"`
	RunJanitorInterval time.Duration `envconfig:"RUN_JANITOR_INTERVAL" default:"5m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate enforces the invariants the engine assumes: each weight set
// sums to exactly 1.0 and the clustering parameters are usable.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.ClusterEps <= 0 {
		return fmt.Errorf("CLUSTER_EPS must be positive, got %v", c.ClusterEps)
	}
	if c.ClusterMinSamples < 1 {
		return fmt.Errorf("CLUSTER_MIN_SAMPLES must be at least 1, got %d", c.ClusterMinSamples)
	}
	if c.DistanceMetric != "cosine" {
		return fmt.Errorf("unsupported distance metric %q", c.DistanceMetric)
	}

	faceSum := c.FaceBlurWeight + c.FaceLightingWeight + c.FaceSizeWeight +
		c.FaceAspectWeight + c.FaceConfidenceWeight
	if math.Abs(faceSum-1.0) > weightEpsilon {
		return fmt.Errorf("face quality weights must sum to 1.0, got %v", faceSum)
	}

	cqSum := c.CqSilhouetteWeight + c.CqDaviesBouldinWeight + c.CqNoiseWeight + c.CqCompactnessWeight
	if math.Abs(cqSum-1.0) > weightEpsilon {
		return fmt.Errorf("clustering quality weights must sum to 1.0, got %v", cqSum)
	}

	repSum := c.RepQualityWeight + c.RepProximityWeight
	if math.Abs(repSum-1.0) > weightEpsilon {
		return fmt.Errorf("representative selection weights must sum to 1.0, got %v", repSum)
	}

	if !(c.LabelExcellent > c.LabelGood && c.LabelGood > c.LabelFair) {
		return fmt.Errorf("quality label bands must be strictly decreasing: %v/%v/%v",
			c.LabelExcellent, c.LabelGood, c.LabelFair)
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

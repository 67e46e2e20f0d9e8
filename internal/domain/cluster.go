package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// clusterKeyNamespace namespaces content-addressed cluster keys.
var clusterKeyNamespace = uuid.MustParse("7f9b6c1e-4a2d-4e8f-9c3b-2d5a8e1f0b47")

// ClusterKey derives a stable cluster identifier from the member set.
// The key depends only on membership, never on the label numbering the
// clustering algorithm happened to produce, so identical partitions
// yield identical keys across runs.
func ClusterKey(memberIDs []uuid.UUID) uuid.UUID {
	ids := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	return uuid.NewSHA1(clusterKeyNamespace, []byte(strings.Join(ids, ",")))
}

// SelectionLevel identifies which fallback level of the representative
// selection policy produced the final choice.
type SelectionLevel int

const (
	SelectionQualityWeighted SelectionLevel = iota + 1
	SelectionBasicThreshold
	SelectionClosestToCentroid
	SelectionFirstMember
)

func (l SelectionLevel) String() string {
	switch l {
	case SelectionQualityWeighted:
		return "quality_weighted"
	case SelectionBasicThreshold:
		return "basic_threshold"
	case SelectionClosestToCentroid:
		return "closest_to_centroid"
	case SelectionFirstMember:
		return "first_member"
	default:
		return "unknown"
	}
}

// QualitySnapshot captures a cluster's statistical quality at the time
// it was computed, persisted alongside the cluster.
type QualitySnapshot struct {
	OverallQuality float64 `json:"overall_quality"`
	Compactness    float64 `json:"compactness"`
	Separation     float64 `json:"separation"`
}

// Cluster groups face observations believed to depict the same person
// within one collection. The full set for a collection is recomputed on
// every run and atomically replaces the previous set.
type Cluster struct {
	Key              uuid.UUID       `json:"key"`
	CollectionID     uuid.UUID       `json:"-"`
	MemberIDs        []uuid.UUID     `json:"member_ids"`
	Centroid         []float32       `json:"-"`
	RepresentativeID uuid.UUID       `json:"representative_id"`
	SelectionLevel   SelectionLevel  `json:"selection_level"`
	Quality          QualitySnapshot `json:"quality"`
	Position         int             `json:"position"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Size returns the member count.
func (c *Cluster) Size() int {
	return len(c.MemberIDs)
}

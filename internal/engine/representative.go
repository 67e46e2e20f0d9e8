package engine

import (
	"github.com/google/uuid"

	"github.com/lumapix/facegraph/internal/domain"
)

// SelectionParams tune the representative fallback chain.
type SelectionParams struct {
	// QualityThreshold admits a face into quality-weighted selection.
	QualityThreshold float64
	// QualityWeight and ProximityWeight blend overall quality with
	// closeness to the cluster centroid. They must sum to 1.0.
	QualityWeight   float64
	ProximityWeight float64
	// MinConfidence and MinSizeScore gate the basic-threshold fallback.
	MinConfidence float64
	MinSizeScore  float64
}

func DefaultSelectionParams() SelectionParams {
	return SelectionParams{
		QualityThreshold: 60,
		QualityWeight:    0.70,
		ProximityWeight:  0.30,
		MinConfidence:    0.5,
		MinSizeScore:     40,
	}
}

// candidate couples an observation with its quality metrics and its
// distance to the cluster centroid.
type candidate struct {
	obs     domain.FaceObservation
	quality domain.FaceQualityMetrics
	dist    float64
}

// selectRepresentative picks the display face for one cluster. It walks
// a four-level fallback chain and always succeeds for a non-empty
// member list:
//
//  1. quality-weighted: among faces at or above QualityThreshold, the
//     best blend of quality and centroid proximity
//  2. basic-threshold: among faces passing the confidence and size
//     gates, the one closest to the centroid
//  3. closest to the centroid, regardless of quality
//  4. the first member
//
// Levels 1-3 need a usable centroid; without one the chain drops
// straight to level 4.
func selectRepresentative(members []candidate, hasCentroid bool, params SelectionParams) (uuid.UUID, domain.SelectionLevel) {
	if len(members) == 0 {
		return uuid.Nil, 0
	}

	if hasCentroid {
		if id, ok := pickQualityWeighted(members, params); ok {
			return id, domain.SelectionQualityWeighted
		}
		if id, ok := pickBasicThreshold(members, params); ok {
			return id, domain.SelectionBasicThreshold
		}
		return pickClosest(members), domain.SelectionClosestToCentroid
	}

	return members[0].obs.ID, domain.SelectionFirstMember
}

func pickQualityWeighted(members []candidate, params SelectionParams) (uuid.UUID, bool) {
	var qualified []candidate
	for _, c := range members {
		if c.quality.OverallQuality >= params.QualityThreshold {
			qualified = append(qualified, c)
		}
	}
	if len(qualified) == 0 {
		return uuid.Nil, false
	}
	if len(qualified) == 1 {
		return qualified[0].obs.ID, true
	}

	var maxDist float64
	for _, c := range qualified {
		if c.dist > maxDist {
			maxDist = c.dist
		}
	}

	best := qualified[0]
	bestScore := -1.0
	for _, c := range qualified {
		proximity := 1.0
		if maxDist > 0 {
			proximity = 1 - c.dist/maxDist
		}
		score := params.QualityWeight*(c.quality.OverallQuality/100) +
			params.ProximityWeight*proximity
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best.obs.ID, true
}

func pickBasicThreshold(members []candidate, params SelectionParams) (uuid.UUID, bool) {
	var passing []candidate
	for _, c := range members {
		if c.obs.DetectorConfidence >= params.MinConfidence &&
			c.quality.SizeScore >= params.MinSizeScore {
			passing = append(passing, c)
		}
	}
	if len(passing) == 0 {
		return uuid.Nil, false
	}
	return pickClosest(passing), true
}

func pickClosest(members []candidate) uuid.UUID {
	best := members[0]
	for _, c := range members[1:] {
		if c.dist < best.dist {
			best = c
		}
	}
	return best.obs.ID
}

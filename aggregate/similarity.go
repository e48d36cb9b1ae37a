package aggregate

import (
	"math"
	"strings"
)

const (
	// frameDiagonal is the diagonal of the normalized [0,1]x[0,1] frame,
	// used to normalize center distances
	frameDiagonal = math.Sqrt2
	// areaEpsilon guards size comparisons against degenerate boxes
	areaEpsilon = 1e-6
)

// Score computes a similarity in [0,1] between a detection event and an
// existing item. It is pure and side-effect free. Hard constraints (category,
// label presence, size difference, center distance) short-circuit to 0; the
// remaining cases blend four component scores by the configured weights.
func Score(event Event, item *Item, cfg Config) float64 {
	if cfg.RequireCategoryMatch && event.Category != item.Category {
		return 0.0
	}

	eventLabel := normalizeLabel(event.Label)
	itemLabel := normalizeLabel(item.Label)
	if cfg.RequireLabelMatch && (eventLabel == "" || itemLabel == "") {
		return 0.0
	}

	eventArea := event.Box.Area()
	itemArea := item.Box.Area()
	maxArea := math.Max(eventArea, itemArea)
	minArea := math.Min(eventArea, itemArea)
	if maxArea <= areaEpsilon {
		// Degenerate boxes are non-matchable
		return 0.0
	}
	sizeRatio := minArea / maxArea
	if math.Abs(1.0-sizeRatio) > cfg.MaxSizeDiffRatio {
		return 0.0
	}

	normDist := event.Box.CenterDistance(item.Box) / frameDiagonal
	if normDist > cfg.MaxCenterDistRatio {
		return 0.0
	}

	categoryScore := 0.0
	if event.Category == item.Category {
		categoryScore = 1.0
	}

	labelScore := 0.0
	if eventLabel != "" && itemLabel != "" {
		labelScore = 1.0 - normalizedLevenshtein(eventLabel, itemLabel)
	}

	sizeScore := 0.0
	if minArea > areaEpsilon {
		sizeScore = sizeRatio
	}

	distanceScore := math.Min(math.Max(1.0-normDist/cfg.MaxCenterDistRatio, 0.0), 1.0)

	weightSum := cfg.Weights.Sum()
	if weightSum == 0 {
		return 0.0
	}
	weighted := cfg.Weights.Category*categoryScore +
		cfg.Weights.Label*labelScore +
		cfg.Weights.Size*sizeScore +
		cfg.Weights.Distance*distanceScore
	return weighted / weightSum
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// normalizedLevenshtein returns the edit distance divided by the longer
// string's length, in [0,1].
func normalizedLevenshtein(a, b string) float64 {
	if a == b {
		return 0.0
	}
	longer := len([]rune(a))
	if l := len([]rune(b)); l > longer {
		longer = l
	}
	if longer == 0 {
		return 0.0
	}
	return float64(levenshtein(a, b)) / float64(longer)
}

// levenshtein is the standard dynamic-programming string edit distance,
// operating on runes.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			substitution := prev[j-1] + cost
			min := deletion
			if insertion < min {
				min = insertion
			}
			if substitution < min {
				min = substitution
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

package aggregate

import (
	"github.com/pkg/errors"
)

// Weights blend the four similarity components. They need not sum to 1, the
// scorer normalizes by their sum.
type Weights struct {
	Category float64 `yaml:"category"`
	Label    float64 `yaml:"label"`
	Size     float64 `yaml:"size"`
	Distance float64 `yaml:"distance"`
}

// Sum returns the total of all component weights.
func (w Weights) Sum() float64 {
	return w.Category + w.Label + w.Size + w.Distance
}

// Config holds the tuning knobs for the aggregation engine.
type Config struct {
	// Minimum similarity for merging a detection into an existing item
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// Maximum allowed center distance, as a fraction of the frame diagonal
	MaxCenterDistRatio float64 `yaml:"max_center_distance_ratio"`
	// Maximum allowed size difference ratio |1 - min(area)/max(area)|
	MaxSizeDiffRatio float64 `yaml:"max_size_difference_ratio"`
	// Forbid merging across categories
	RequireCategoryMatch bool `yaml:"category_match_required"`
	// Forbid merging when either label is empty
	RequireLabelMatch bool `yaml:"label_match_required"`
	// Component weights of the similarity score
	Weights Weights `yaml:"weights"`
}

// DefaultConfig returns a Config tuned for handheld scanning of shelf-distance objects.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:  0.65,
		MaxCenterDistRatio:   0.3,
		MaxSizeDiffRatio:     0.7,
		RequireCategoryMatch: true,
		RequireLabelMatch:    false,
		Weights: Weights{
			Category: 0.3,
			Label:    0.3,
			Size:     0.2,
			Distance: 0.2,
		},
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (cfg Config) Validate() error {
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return errors.Errorf("similarity_threshold must be in [0,1], got %f", cfg.SimilarityThreshold)
	}
	if cfg.MaxCenterDistRatio <= 0 {
		return errors.Errorf("max_center_distance_ratio must be positive, got %f", cfg.MaxCenterDistRatio)
	}
	if cfg.MaxSizeDiffRatio < 0 {
		return errors.Errorf("max_size_difference_ratio must be non-negative, got %f", cfg.MaxSizeDiffRatio)
	}
	if cfg.Weights.Category < 0 || cfg.Weights.Label < 0 || cfg.Weights.Size < 0 || cfg.Weights.Distance < 0 {
		return errors.New("similarity weights must be non-negative")
	}
	return nil
}

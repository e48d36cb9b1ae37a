package track

import (
	"github.com/pkg/errors"
)

// Assignment selects how detections are assigned to candidates within a frame.
type Assignment uint16

const (
	// AssignmentGreedy matches each detection to its best candidate in input
	// order; the first detection to claim a candidate wins.
	AssignmentGreedy Assignment = iota
	// AssignmentHungarian solves a globally optimal one-to-one assignment
	// (Kuhn-Munkres) over the frame's score matrix.
	AssignmentHungarian
)

// Config holds the tuning knobs for the candidate Tracker.
type Config struct {
	// Minimum number of observations before a candidate can be confirmed
	MinFramesToConfirm int `yaml:"min_frames_to_confirm"`
	// Minimum peak confidence required for confirmation
	MinConfidence float64 `yaml:"min_confidence"`
	// Minimum normalized box area; smaller detections are discarded outright
	MinBoxArea float64 `yaml:"min_box_area"`
	// Candidates unseen for more than this many frames are excluded from spatial matching
	MaxFrameGap int `yaml:"max_frame_gap"`
	// Minimum combined spatial score for a match
	MinMatchScore float64 `yaml:"min_match_score"`
	// Candidates unseen for more than this many frames are removed
	ExpiryFrames int `yaml:"expiry_frames"`
	// Time step between analyzed frames in seconds, drives center prediction
	FrameInterval float64 `yaml:"frame_interval"`
	// Assignment algorithm for spatial matching
	Assignment Assignment `yaml:"assignment"`
}

// DefaultConfig returns a Config tuned for a ~25fps mobile camera pipeline.
func DefaultConfig() Config {
	return Config{
		MinFramesToConfirm: 3,
		MinConfidence:      0.5,
		MinBoxArea:         0.005,
		MaxFrameGap:        5,
		MinMatchScore:      0.3,
		ExpiryFrames:       10,
		FrameInterval:      1.0 / 25.0,
		Assignment:         AssignmentGreedy,
	}
}

// Validate checks the configuration for values the tracker cannot work with.
func (cfg Config) Validate() error {
	if cfg.MinFramesToConfirm < 1 {
		return errors.Errorf("min_frames_to_confirm must be at least 1, got %d", cfg.MinFramesToConfirm)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return errors.Errorf("min_confidence must be in [0,1], got %f", cfg.MinConfidence)
	}
	if cfg.MinBoxArea < 0 {
		return errors.Errorf("min_box_area must be non-negative, got %f", cfg.MinBoxArea)
	}
	if cfg.MaxFrameGap < 0 {
		return errors.Errorf("max_frame_gap must be non-negative, got %d", cfg.MaxFrameGap)
	}
	if cfg.ExpiryFrames < 0 {
		return errors.Errorf("expiry_frames must be non-negative, got %d", cfg.ExpiryFrames)
	}
	if cfg.FrameInterval <= 0 {
		return errors.Errorf("frame_interval must be positive, got %f", cfg.FrameInterval)
	}
	return nil
}

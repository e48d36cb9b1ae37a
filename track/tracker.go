package track

import (
	"math"

	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"

	"github.com/scanline/scanline-go/geom"
)

// Weights of the combined spatial score: overlap dominates, center distance
// recovers matches when boxes barely intersect.
const (
	iouWeight      = 0.6
	distanceWeight = 0.4
)

// Tracker matches raw per-frame detections to live candidates and promotes a
// candidate exactly once when it has been observed often and confidently
// enough. It is driven synchronously by one frame-analysis call site and does
// no internal locking.
type Tracker struct {
	cfg Config
	// Insertion order is the scan order, kept stable so ties resolve to the
	// first-created candidate
	candidates []*Candidate
	index      map[string]*Candidate
	frame      int
	newID      IDSource
}

// NewTracker creates a Tracker with the given configuration.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid tracker config")
	}
	return &Tracker{
		cfg:   cfg,
		index: make(map[string]*Candidate),
		newID: defaultIDSource,
	}, nil
}

// NewDefaultTracker creates a Tracker with default configuration.
func NewDefaultTracker() *Tracker {
	tracker, _ := NewTracker(DefaultConfig())
	return tracker
}

// SetIDSource replaces the surrogate id generator, mainly for deterministic tests.
func (tracker *Tracker) SetIDSource(src IDSource) {
	if src != nil {
		tracker.newID = src
	}
}

// Frame returns the current frame index.
func (tracker *Tracker) Frame() int {
	return tracker.frame
}

// Live returns the current candidates in creation order.
func (tracker *Tracker) Live() []*Candidate {
	out := make([]*Candidate, len(tracker.candidates))
	copy(out, tracker.candidates)
	return out
}

// Reset clears all candidates and the frame counter. Callers invoke it when a
// new session starts or the detection mode changes.
func (tracker *Tracker) Reset() {
	for _, cand := range tracker.candidates {
		cand.release()
	}
	tracker.candidates = nil
	tracker.index = make(map[string]*Candidate)
	tracker.frame = 0
}

// ProcessFrame advances the frame counter, matches the given detections to
// live candidates and returns the candidates that transitioned to confirmed
// during this call. A candidate is returned at most once over its lifetime.
func (tracker *Tracker) ProcessFrame(detections []Detection) []*Candidate {
	tracker.frame++

	for _, cand := range tracker.candidates {
		cand.predictNext()
	}

	var touched []*Candidate
	switch tracker.cfg.Assignment {
	case AssignmentHungarian:
		touched = tracker.assignHungarian(detections)
	default:
		touched = tracker.assignGreedy(detections)
	}

	confirmed := make([]*Candidate, 0)
	for _, cand := range touched {
		if !cand.confirmed && cand.meetsConfirmation(tracker.cfg) {
			cand.confirmed = true
			confirmed = append(confirmed, cand)
		}
	}

	tracker.expire()
	return confirmed
}

// assignGreedy matches detections in input order; the first detection to claim
// a candidate wins, later ones fall through to new-candidate creation.
func (tracker *Tracker) assignGreedy(detections []Detection) []*Candidate {
	claimed := make(map[string]struct{})
	touched := make([]*Candidate, 0, len(detections))
	for _, det := range detections {
		if det.Area() < tracker.cfg.MinBoxArea {
			if det.Thumbnail != nil {
				det.Thumbnail.Release()
			}
			continue
		}
		cand := tracker.findMatch(det, claimed)
		if cand != nil {
			cand.update(det, tracker.frame)
			claimed[cand.id] = struct{}{}
		} else {
			cand = tracker.register(det)
			claimed[cand.id] = struct{}{}
		}
		touched = append(touched, cand)
	}
	return touched
}

// findMatch looks up a candidate by tracking id first, then falls back to a
// spatial scan over unclaimed candidates within the allowed frame gap.
func (tracker *Tracker) findMatch(det Detection, claimed map[string]struct{}) *Candidate {
	if det.TrackingID != "" {
		if cand, ok := tracker.index[det.TrackingID]; ok {
			if _, taken := claimed[cand.id]; taken {
				// A candidate may absorb only one detection per frame: a
				// second detection with the same tracking id opens a new
				// candidate instead of claiming somebody else spatially
				return nil
			}
			return cand
		}
	}
	var best *Candidate
	bestScore := tracker.cfg.MinMatchScore
	for _, cand := range tracker.candidates {
		if _, taken := claimed[cand.id]; taken {
			continue
		}
		if tracker.frame-cand.lastFrame > tracker.cfg.MaxFrameGap {
			continue
		}
		score := spatialScore(det, cand.PredictedBox())
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	return best
}

// assignHungarian resolves tracking-id matches first, then solves a globally
// optimal one-to-one assignment over the remaining detections and candidates.
func (tracker *Tracker) assignHungarian(detections []Detection) []*Candidate {
	claimed := make(map[string]struct{})
	touched := make([]*Candidate, 0, len(detections))
	remaining := make([]Detection, 0, len(detections))

	for _, det := range detections {
		if det.Area() < tracker.cfg.MinBoxArea {
			if det.Thumbnail != nil {
				det.Thumbnail.Release()
			}
			continue
		}
		if det.TrackingID != "" {
			if cand, ok := tracker.index[det.TrackingID]; ok {
				if _, taken := claimed[cand.id]; taken {
					// Duplicate tracking id within one frame opens a new
					// candidate rather than entering the spatial assignment
					touched = append(touched, tracker.register(det))
					continue
				}
				cand.update(det, tracker.frame)
				claimed[cand.id] = struct{}{}
				touched = append(touched, cand)
				continue
			}
		}
		remaining = append(remaining, det)
	}

	eligible := make([]*Candidate, 0, len(tracker.candidates))
	for _, cand := range tracker.candidates {
		if _, taken := claimed[cand.id]; taken {
			continue
		}
		if tracker.frame-cand.lastFrame > tracker.cfg.MaxFrameGap {
			continue
		}
		eligible = append(eligible, cand)
	}

	matchedDetections := make(map[int]struct{})
	if len(eligible) > 0 && len(remaining) > 0 {
		scores := tracker.scoreMatrix(eligible, remaining)
		for candIdx, detIdx := range solveAssignment(scores, len(eligible), len(remaining)) {
			if scores[candIdx][detIdx] <= tracker.cfg.MinMatchScore {
				continue
			}
			cand := eligible[candIdx]
			cand.update(remaining[detIdx], tracker.frame)
			claimed[cand.id] = struct{}{}
			matchedDetections[detIdx] = struct{}{}
			touched = append(touched, cand)
		}
	}

	for i, det := range remaining {
		if _, found := matchedDetections[i]; found {
			continue
		}
		touched = append(touched, tracker.register(det))
	}
	return touched
}

// scoreMatrix builds the candidate x detection spatial score matrix.
func (tracker *Tracker) scoreMatrix(candidates []*Candidate, detections []Detection) [][]float64 {
	matrix := make([][]float64, len(candidates))
	for i, cand := range candidates {
		row := make([]float64, len(detections))
		predicted := cand.PredictedBox()
		for j, det := range detections {
			row[j] = spatialScore(det, predicted)
		}
		matrix[i] = row
	}
	return matrix
}

// solveAssignment runs the Hungarian solver on a zero-padded square copy of
// the score matrix and returns candidate index -> detection index pairs.
func solveAssignment(scores [][]float64, numCandidates, numDetections int) map[int]int {
	size := numCandidates
	if numDetections > size {
		size = numDetections
	}
	padded := make([][]float64, size)
	for i := 0; i < size; i++ {
		padded[i] = make([]float64, size)
		if i < numCandidates {
			copy(padded[i], scores[i])
		}
	}
	assignments := make(map[int]int)
	for candIdx, row := range hungarian.SolveMax(padded) {
		if candIdx >= numCandidates {
			continue
		}
		for detIdx := range row {
			if detIdx < numDetections {
				assignments[candIdx] = detIdx
			}
			break
		}
	}
	return assignments
}

// register creates a new candidate for an unmatched detection.
func (tracker *Tracker) register(det Detection) *Candidate {
	id := det.TrackingID
	if id == "" {
		id = tracker.newID(det)
	}
	if _, exists := tracker.index[id]; exists {
		// Same tracking id claimed twice within one frame
		id = tracker.newID(det)
	}
	cand := newCandidate(id, det, tracker.frame, tracker.cfg.FrameInterval)
	tracker.candidates = append(tracker.candidates, cand)
	tracker.index[id] = cand
	return cand
}

// expire removes candidates unseen for longer than the configured window.
func (tracker *Tracker) expire() {
	kept := tracker.candidates[:0]
	for _, cand := range tracker.candidates {
		if tracker.frame-cand.lastFrame > tracker.cfg.ExpiryFrames {
			cand.release()
			delete(tracker.index, cand.id)
			continue
		}
		kept = append(kept, cand)
	}
	tracker.candidates = kept
}

// spatialScore combines bounding box overlap with center proximity. The center
// distance is normalized by the detection's own box diagonal so the metric is
// resolution independent, halved and clamped to [0,1].
func spatialScore(det Detection, candBox geom.Rect) float64 {
	iou := det.Box.IoU(candBox)
	diagonal := det.Box.Diagonal()
	if diagonal == 0 {
		return iouWeight * iou
	}
	normDist := math.Min(det.Box.CenterDistance(candBox)/diagonal/2.0, 1.0)
	return iouWeight*iou + distanceWeight*(1.0-normDist)
}

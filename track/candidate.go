package track

import (
	"fmt"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/google/uuid"

	"github.com/scanline/scanline-go/geom"
)

// Candidate is the per-frame tracking state for one not-yet-persistent object.
// It is created on the first unmatched detection, absorbs every later matching
// detection and transitions exactly once from unconfirmed to confirmed.
type Candidate struct {
	id              string
	box             geom.Rect
	firstFrame      int
	lastFrame       int
	observations    int
	maxConfidence   float64
	category        string
	label           string
	thumbnail       Thumbnail
	avgArea         float64
	confirmed       bool
	predictedCenter geom.Point
	filter          *kalman_filter.Kalman2D
}

func newCandidate(id string, det Detection, frame int, dt float64) *Candidate {
	center := det.Box.Center()

	/* Kalman filter props, scaled for normalized [0,1] coordinates. The
	control acceleration is zero: a nonzero input biases the steady-state
	prediction away from a stationary object's true center. */
	ux := 0.0
	uy := 0.0
	stdDevA := 0.05
	stdDevMx := 0.005
	stdDevMy := 0.005
	kf := kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(center.X, center.Y))

	return &Candidate{
		id:              id,
		box:             det.Box,
		firstFrame:      frame,
		lastFrame:       frame,
		observations:    1,
		maxConfidence:   det.Confidence,
		category:        det.Category,
		label:           det.Label,
		thumbnail:       det.Thumbnail,
		avgArea:         det.Area(),
		predictedCenter: center,
		filter:          kf,
	}
}

// ID returns the candidate's identifier. It equals the detection's tracking id
// when the pipeline supplied one, otherwise a generated surrogate.
func (cand *Candidate) ID() string {
	return cand.id
}

// Box returns the candidate's current bounding box.
func (cand *Candidate) Box() geom.Rect {
	return cand.box
}

// PredictedBox returns the current box translated onto the Kalman-predicted center.
func (cand *Candidate) PredictedBox() geom.Rect {
	return cand.box.TranslateTo(cand.predictedCenter)
}

// FirstFrame returns the frame index of the first observation.
func (cand *Candidate) FirstFrame() int {
	return cand.firstFrame
}

// LastFrame returns the frame index of the most recent observation.
func (cand *Candidate) LastFrame() int {
	return cand.lastFrame
}

// Observations returns how many frames have matched this candidate.
func (cand *Candidate) Observations() int {
	return cand.observations
}

// MaxConfidence returns the highest confidence seen so far.
func (cand *Candidate) MaxConfidence() float64 {
	return cand.maxConfidence
}

// Category returns the category reported at peak confidence.
func (cand *Candidate) Category() string {
	return cand.category
}

// Label returns the label reported at peak confidence.
func (cand *Candidate) Label() string {
	return cand.label
}

// Thumbnail returns the thumbnail captured at peak confidence, may be nil.
func (cand *Candidate) Thumbnail() Thumbnail {
	return cand.thumbnail
}

// TakeThumbnail hands ownership of the thumbnail to the caller and clears it
// on the candidate, so expiry will not release a resource someone else holds.
func (cand *Candidate) TakeThumbnail() Thumbnail {
	thumb := cand.thumbnail
	cand.thumbnail = nil
	return thumb
}

// AvgArea returns the running average of the normalized box area.
func (cand *Candidate) AvgArea() float64 {
	return cand.avgArea
}

// Confirmed reports whether the candidate has already been confirmed.
func (cand *Candidate) Confirmed() bool {
	return cand.confirmed
}

// predictNext executes the Kalman prediction step, advancing the estimated
// center by one frame interval.
func (cand *Candidate) predictNext() {
	cand.filter.Predict()
	stateX, stateY := cand.filter.GetState()
	cand.predictedCenter.X = stateX
	cand.predictedCenter.Y = stateY
}

// update absorbs one matching detection.
func (cand *Candidate) update(det Detection, frame int) {
	cand.box = det.Box
	cand.lastFrame = frame
	cand.observations++
	if det.Confidence > cand.maxConfidence {
		cand.maxConfidence = det.Confidence
		cand.category = det.Category
		cand.label = det.Label
		if det.Thumbnail != nil {
			if cand.thumbnail != nil {
				cand.thumbnail.Release()
			}
			cand.thumbnail = det.Thumbnail
		}
	} else if det.Thumbnail != nil {
		// Lower-confidence crop is not kept
		det.Thumbnail.Release()
	}
	n := float64(cand.observations)
	cand.avgArea = (cand.avgArea*(n-1) + det.Area()) / n

	// Smooth center via Kalman filter; the raw box stays authoritative,
	// the filter only drives next-frame prediction.
	center := det.Box.Center()
	if err := cand.filter.Update(center.X, center.Y); err == nil {
		stateX, stateY := cand.filter.GetState()
		cand.predictedCenter.X = stateX
		cand.predictedCenter.Y = stateY
	}
}

// meetsConfirmation checks the confirmation bar against the given config.
func (cand *Candidate) meetsConfirmation(cfg Config) bool {
	return cand.observations >= cfg.MinFramesToConfirm &&
		cand.maxConfidence >= cfg.MinConfidence &&
		cand.avgArea >= cfg.MinBoxArea
}

// release frees resources still owned by the candidate.
func (cand *Candidate) release() {
	if cand.thumbnail != nil {
		cand.thumbnail.Release()
		cand.thumbnail = nil
	}
}

// IDSource generates identifiers for detections lacking a tracking id.
type IDSource func(det Detection) string

// defaultIDSource derives a surrogate id from the initial position and
// category plus a unique suffix.
func defaultIDSource(det Detection) string {
	center := det.Box.Center()
	return fmt.Sprintf("%s-%.3f-%.3f-%s", det.Category, center.X, center.Y, uuid.NewString()[:8])
}

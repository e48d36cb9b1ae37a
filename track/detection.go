package track

import (
	"github.com/scanline/scanline-go/geom"
)

// Thumbnail is an owned image resource handed over by the capture pipeline.
// Whoever holds the last reference is responsible for calling Release.
type Thumbnail interface {
	// Quality is a score used to decide whether a newer thumbnail should
	// replace a stored one.
	Quality() float64
	// Release frees the underlying image resource.
	Release()
}

// Detection is a single object reported by the vision model for one analyzed frame.
type Detection struct {
	// TrackingID is the stable identifier supplied by the vision pipeline when
	// it provides cross-frame continuity. Empty for single-shot detections.
	TrackingID string
	// Box is the detection's bounding box in normalized frame coordinates.
	Box geom.Rect
	// Confidence of the detection in [0,1].
	Confidence float64
	// Category is the coarse object category reported by the model.
	Category string
	// Label is the model's label text for the object.
	Label string
	// Thumbnail is an optional crop of the detected object.
	Thumbnail Thumbnail
}

// Area returns the detection's normalized bounding box area.
func (d Detection) Area() float64 {
	return d.Box.Area()
}

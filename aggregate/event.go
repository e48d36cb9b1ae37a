package aggregate

import (
	"time"

	"github.com/scanline/scanline-go/geom"
)

// Thumbnail is an owned image resource attached to a detection or item.
// Whoever holds the last reference is responsible for calling Release.
// Registry snapshots borrow the handle: it stays valid only until the
// registry releases it through a merge replacement, eviction or deletion,
// so snapshot holders must not retain it past their rendering pass.
type Thumbnail interface {
	// Quality is a score used to decide whether a newer thumbnail should
	// replace a stored one.
	Quality() float64
	// Release frees the underlying image resource.
	Release()
}

// PriceRange is an estimated price interval for an item. On merges it is only
// ever widened, never narrowed.
type PriceRange struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Widen returns the smallest range covering both ranges.
func (pr PriceRange) Widen(other PriceRange) PriceRange {
	out := pr
	if other.Low < out.Low {
		out.Low = other.Low
	}
	if other.High > out.High {
		out.High = other.High
	}
	return out
}

// Event is a confirmed detection handed to the aggregation engine, either the
// promoted form of a tracked candidate or a single-shot capture.
type Event struct {
	// Source identifies the detection this event originated from (typically
	// the candidate id). It seeds new item ids and the merged-sources set.
	Source string
	// Category is the coarse object category.
	Category string
	// Label is the detector's label text.
	Label string
	// Box is the bounding box in normalized frame coordinates.
	Box geom.Rect
	// Confidence of the detection in [0,1].
	Confidence float64
	// Thumbnail is an optional crop of the object; ownership passes to the registry.
	Thumbnail Thumbnail
	// FrameRef optionally references the stored full frame the event came from.
	FrameRef string
	// Price is an optional initial price estimate.
	Price *PriceRange
	// Timestamp is when the detection was confirmed.
	Timestamp time.Time
}

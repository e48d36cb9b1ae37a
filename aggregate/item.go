package aggregate

import (
	"time"

	"github.com/scanline/scanline-go/geom"
)

// Item is the persistent representation of one believed-unique physical
// object, built from one or more merged detection events. Its ID is the id of
// the first event that created it and survives every later merge, so external
// references such as listing drafts stay valid.
type Item struct {
	ID       string
	Category string
	Label    string
	// Box is the most recent bounding box. Merges replace it outright since
	// objects move; positions are never averaged.
	Box geom.Rect
	// Thumbnail is the best crop seen so far, judged by ThumbnailQuality.
	Thumbnail        Thumbnail
	ThumbnailQuality float64
	// FrameRef references the stored full frame of the best detection.
	FrameRef      string
	MaxConfidence float64
	AvgConfidence float64
	// MergeCount is 1 at creation and grows by one per merged event.
	MergeCount int
	// Sources is the set of detection identifiers merged into this item.
	Sources map[string]struct{}
	Price   PriceRange
	// Detected holds the latest automatic classification verbatim.
	Detected map[string]string
	// Effective holds the attributes presented to the user: detected values
	// overlaid with user edits.
	Effective map[string]string
	// UserEdited marks effective keys owned by a user edit. Such keys are
	// never overwritten by a later automatic classification.
	UserEdited map[string]bool
	FirstSeen  time.Time
	LastSeen   time.Time
}

func newItem(id string, event Event, ts time.Time) *Item {
	item := &Item{
		ID:            id,
		Category:      event.Category,
		Label:         event.Label,
		Box:           event.Box,
		FrameRef:      event.FrameRef,
		MaxConfidence: event.Confidence,
		AvgConfidence: event.Confidence,
		MergeCount:    1,
		Sources:       make(map[string]struct{}),
		Detected:      make(map[string]string),
		Effective:     make(map[string]string),
		UserEdited:    make(map[string]bool),
		FirstSeen:     ts,
		LastSeen:      ts,
	}
	if event.Source != "" {
		item.Sources[event.Source] = struct{}{}
	}
	if event.Thumbnail != nil {
		item.Thumbnail = event.Thumbnail
		item.ThumbnailQuality = event.Thumbnail.Quality()
	}
	if event.Price != nil {
		item.Price = *event.Price
	}
	return item
}

// merge absorbs one detection event into the item.
func (item *Item) merge(event Event, ts time.Time) {
	item.MergeCount++
	if event.Source != "" {
		item.Sources[event.Source] = struct{}{}
	}

	n := float64(item.MergeCount)
	item.AvgConfidence = (item.AvgConfidence*(n-1) + event.Confidence) / n
	if event.Confidence > item.MaxConfidence {
		item.MaxConfidence = event.Confidence
		item.Category = event.Category
		item.Label = event.Label
	}

	item.Box = event.Box

	if event.Thumbnail != nil {
		quality := event.Thumbnail.Quality()
		if item.Thumbnail == nil || quality > item.ThumbnailQuality {
			if item.Thumbnail != nil {
				item.Thumbnail.Release()
			}
			item.Thumbnail = event.Thumbnail
			item.ThumbnailQuality = quality
			if event.FrameRef != "" {
				item.FrameRef = event.FrameRef
			}
		} else {
			event.Thumbnail.Release()
		}
	}

	if event.Price != nil {
		item.Price = item.Price.Widen(*event.Price)
	}

	item.LastSeen = ts
}

// applyClassification merges attribute updates into the item. Backend results
// refresh the detected copy verbatim but only reach the effective set for keys
// a user has not edited; user edits touch only the effective set and pin their
// keys against later automatic overwrites.
func (item *Item) applyClassification(attrs map[string]string, fromBackend bool) {
	if fromBackend {
		item.Detected = make(map[string]string, len(attrs))
		for key, value := range attrs {
			item.Detected[key] = value
			if !item.UserEdited[key] {
				item.Effective[key] = value
			}
		}
		return
	}
	for key, value := range attrs {
		item.Effective[key] = value
		item.UserEdited[key] = true
	}
}

// Clone returns an independent deep copy. The thumbnail handle is shared, not
// owned: the registry may release it at any time (merge replacement, eviction,
// deletion), so clone holders treat it as borrowed and valid only for the
// current rendering pass. See the Thumbnail contract.
func (item *Item) Clone() *Item {
	out := *item
	out.Sources = make(map[string]struct{}, len(item.Sources))
	for source := range item.Sources {
		out.Sources[source] = struct{}{}
	}
	out.Detected = make(map[string]string, len(item.Detected))
	for key, value := range item.Detected {
		out.Detected[key] = value
	}
	out.Effective = make(map[string]string, len(item.Effective))
	for key, value := range item.Effective {
		out.Effective[key] = value
	}
	out.UserEdited = make(map[string]bool, len(item.UserEdited))
	for key, edited := range item.UserEdited {
		out.UserEdited[key] = edited
	}
	return &out
}

// release frees resources owned by the item.
func (item *Item) release() {
	if item.Thumbnail != nil {
		item.Thumbnail.Release()
		item.Thumbnail = nil
	}
}

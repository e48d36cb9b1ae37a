package scanline

import (
	"time"

	"github.com/pkg/errors"

	"github.com/scanline/scanline-go/aggregate"
	"github.com/scanline/scanline-go/track"
)

// Pipeline drives the full detection-to-item flow: raw frame detections are
// tracked into confirmed candidates, each confirmation is promoted to a
// detection event and routed through the aggregation registry.
//
// ProcessFrame must be serialized by the caller (one camera pipeline feeds
// it); the registry itself is safe for concurrent access from other call
// sites such as classification callbacks and user edits.
type Pipeline struct {
	tracker  *track.Tracker
	registry *aggregate.Registry
	now      func() time.Time
}

// NewPipeline creates a Pipeline from the combined configuration.
func NewPipeline(cfg Config) (*Pipeline, error) {
	tracker, err := track.NewTracker(cfg.Tracker)
	if err != nil {
		return nil, err
	}
	registry, err := aggregate.NewRegistry(cfg.Aggregation)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		tracker:  tracker,
		registry: registry,
		now:      time.Now,
	}, nil
}

// NewDefaultPipeline creates a Pipeline with default configuration.
func NewDefaultPipeline() *Pipeline {
	pipeline, err := NewPipeline(DefaultConfig())
	if err != nil {
		// Default configs are validated by tests; reaching this is a bug
		panic(errors.Wrap(err, "default pipeline config is invalid"))
	}
	return pipeline
}

// SetClock replaces the time source used for event timestamps and staleness,
// mainly for deterministic tests.
func (p *Pipeline) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	p.now = now
	p.registry.SetClock(now)
}

// Tracker exposes the frame-horizon tracker.
func (p *Pipeline) Tracker() *track.Tracker {
	return p.tracker
}

// Registry exposes the aggregation registry for snapshots, classification
// results, user edits, threshold tuning and eviction.
func (p *Pipeline) Registry() *aggregate.Registry {
	return p.registry
}

// ProcessFrame feeds one frame of raw detections through the tracker and
// routes every newly confirmed candidate into the registry. Returns the ids
// of items merged into or created during this call.
func (p *Pipeline) ProcessFrame(detections []track.Detection) []string {
	confirmed := p.tracker.ProcessFrame(detections)
	if len(confirmed) == 0 {
		return nil
	}
	ts := p.now()
	events := make([]aggregate.Event, len(confirmed))
	for i, cand := range confirmed {
		events[i] = eventFromCandidate(cand, ts)
	}
	return p.registry.ProcessBatch(events)
}

// ProcessCapture routes a single-shot detection straight into the registry,
// bypassing frame-to-frame tracking. Used for tap-to-capture flows where no
// continuity exists.
func (p *Pipeline) ProcessCapture(det track.Detection, frameRef string) string {
	source := det.TrackingID
	event := aggregate.Event{
		Source:     source,
		Category:   det.Category,
		Label:      det.Label,
		Box:        det.Box,
		Confidence: det.Confidence,
		Thumbnail:  det.Thumbnail,
		FrameRef:   frameRef,
		Timestamp:  p.now(),
	}
	return p.registry.ProcessDetection(event)
}

// Reset clears the tracker and the registry, e.g. when a new scanning session
// starts.
func (p *Pipeline) Reset() {
	p.tracker.Reset()
	p.registry.Reset()
}

// eventFromCandidate promotes a confirmed candidate. Thumbnail ownership moves
// to the event so candidate expiry won't release a resource the item holds.
func eventFromCandidate(cand *track.Candidate, ts time.Time) aggregate.Event {
	return aggregate.Event{
		Source:     cand.ID(),
		Category:   cand.Category(),
		Label:      cand.Label(),
		Box:        cand.Box(),
		Confidence: cand.MaxConfidence(),
		Thumbnail:  cand.TakeThumbnail(),
		Timestamp:  ts,
	}
}

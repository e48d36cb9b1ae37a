package track

import (
	"fmt"
	"testing"

	"github.com/scanline/scanline-go/geom"
)

type fakeThumb struct {
	quality  float64
	released bool
}

func (f *fakeThumb) Quality() float64 { return f.quality }
func (f *fakeThumb) Release()         { f.released = true }

func stableDetection(conf float64) Detection {
	return Detection{
		Box:        geom.NewRect(0.1, 0.1, 0.4, 0.4),
		Confidence: conf,
		Category:   "FASHION",
		Label:      "sneaker",
	}
}

func sequentialIDs() IDSource {
	counter := 0
	return func(det Detection) string {
		counter++
		return fmt.Sprintf("gen-%d", counter)
	}
}

func TestConfirmationAfterMinFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFramesToConfirm = 3
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for frame := 1; frame <= 2; frame++ {
		confirmed := tracker.ProcessFrame([]Detection{stableDetection(0.9)})
		if len(confirmed) != 0 {
			t.Errorf("frame %d: expected no confirmations, got %d", frame, len(confirmed))
		}
	}

	confirmed := tracker.ProcessFrame([]Detection{stableDetection(0.9)})
	if len(confirmed) != 1 {
		t.Fatalf("frame 3: expected exactly one confirmation, got %d", len(confirmed))
	}
	if confirmed[0].Observations() != 3 {
		t.Errorf("expected 3 observations, got %d", confirmed[0].Observations())
	}
	if !confirmed[0].Confirmed() {
		t.Error("candidate should be marked confirmed")
	}

	// Confirmation happens exactly once per candidate lifetime
	for frame := 4; frame <= 6; frame++ {
		confirmed := tracker.ProcessFrame([]Detection{stableDetection(0.9)})
		if len(confirmed) != 0 {
			t.Errorf("frame %d: candidate re-confirmed", frame)
		}
	}

	if len(tracker.Live()) != 1 {
		t.Errorf("expected one live candidate, got %d", len(tracker.Live()))
	}
}

func TestConfirmationRequiresConfidence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFramesToConfirm = 2
	cfg.MinConfidence = 0.8
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for frame := 1; frame <= 4; frame++ {
		if confirmed := tracker.ProcessFrame([]Detection{stableDetection(0.5)}); len(confirmed) != 0 {
			t.Fatalf("frame %d: low-confidence candidate confirmed", frame)
		}
	}

	// A single strong observation lifts the running maximum over the bar
	confirmed := tracker.ProcessFrame([]Detection{stableDetection(0.85)})
	if len(confirmed) != 1 {
		t.Fatalf("expected confirmation after confident observation, got %d", len(confirmed))
	}
}

func TestMinAreaFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinBoxArea = 0.005
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}

	thumb := &fakeThumb{quality: 0.5}
	tiny := Detection{
		Box:        geom.NewRect(0.1, 0.1, 0.11, 0.11),
		Confidence: 0.99,
		Category:   "FASHION",
		Thumbnail:  thumb,
	}
	tracker.ProcessFrame([]Detection{tiny})
	if len(tracker.Live()) != 0 {
		t.Errorf("tiny detection should be discarded, got %d candidates", len(tracker.Live()))
	}
	if !thumb.released {
		t.Error("discarded detection should release its thumbnail")
	}
}

func TestTrackingIDMatchBeatsDistance(t *testing.T) {
	tracker := NewDefaultTracker()

	first := stableDetection(0.7)
	first.TrackingID = "veh-1"
	tracker.ProcessFrame([]Detection{first})

	// Same tracking id far away: id continuity wins over the spatial heuristic
	moved := Detection{
		TrackingID: "veh-1",
		Box:        geom.NewRect(0.6, 0.6, 0.9, 0.9),
		Confidence: 0.7,
		Category:   "FASHION",
	}
	tracker.ProcessFrame([]Detection{moved})

	live := tracker.Live()
	if len(live) != 1 {
		t.Fatalf("expected one candidate, got %d", len(live))
	}
	if live[0].ID() != "veh-1" {
		t.Errorf("expected candidate id veh-1, got %s", live[0].ID())
	}
	if live[0].Observations() != 2 {
		t.Errorf("expected 2 observations, got %d", live[0].Observations())
	}
}

func TestSingleClaimPerFrame(t *testing.T) {
	tracker := NewDefaultTracker()
	tracker.SetIDSource(sequentialIDs())

	tracker.ProcessFrame([]Detection{stableDetection(0.9)})
	if len(tracker.Live()) != 1 {
		t.Fatalf("expected one candidate after first frame, got %d", len(tracker.Live()))
	}

	// Two identical detections in one frame: only the first claims the
	// candidate, the second must open a new one
	tracker.ProcessFrame([]Detection{stableDetection(0.9), stableDetection(0.9)})
	live := tracker.Live()
	if len(live) != 2 {
		t.Fatalf("expected two candidates, got %d", len(live))
	}
	if live[0].Observations() != 2 {
		t.Errorf("first candidate should have 2 observations, got %d", live[0].Observations())
	}
	if live[1].Observations() != 1 {
		t.Errorf("second candidate should have 1 observation, got %d", live[1].Observations())
	}
}

func TestFrameGapExcludesFromMatching(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrameGap = 1
	cfg.ExpiryFrames = 10
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}
	tracker.SetIDSource(sequentialIDs())

	tracker.ProcessFrame([]Detection{stableDetection(0.9)})
	tracker.ProcessFrame(nil)
	tracker.ProcessFrame(nil)

	// Gap is now 3 > 1: the old candidate is unmatchable but not yet expired
	tracker.ProcessFrame([]Detection{stableDetection(0.9)})
	if len(tracker.Live()) != 2 {
		t.Errorf("expected stale candidate to be skipped and a new one created, got %d candidates", len(tracker.Live()))
	}
}

func TestExpiryReleasesThumbnail(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpiryFrames = 2
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}

	thumb := &fakeThumb{quality: 0.5}
	det := stableDetection(0.9)
	det.Thumbnail = thumb
	tracker.ProcessFrame([]Detection{det})

	for frame := 0; frame < 3; frame++ {
		tracker.ProcessFrame(nil)
	}
	if len(tracker.Live()) != 0 {
		t.Fatalf("expected candidate to expire, got %d live", len(tracker.Live()))
	}
	if !thumb.released {
		t.Error("expired candidate should release its thumbnail")
	}
}

func TestHungarianSinglePairMatchesGreedy(t *testing.T) {
	greedyCfg := DefaultConfig()
	hungarianCfg := DefaultConfig()
	hungarianCfg.Assignment = AssignmentHungarian

	for _, cfg := range []Config{greedyCfg, hungarianCfg} {
		tracker, err := NewTracker(cfg)
		if err != nil {
			t.Fatal(err)
		}
		tracker.ProcessFrame([]Detection{stableDetection(0.9)})
		tracker.ProcessFrame([]Detection{stableDetection(0.9)})
		live := tracker.Live()
		if len(live) != 1 {
			t.Fatalf("assignment %d: expected one candidate, got %d", cfg.Assignment, len(live))
		}
		if live[0].Observations() != 2 {
			t.Errorf("assignment %d: expected 2 observations, got %d", cfg.Assignment, live[0].Observations())
		}
	}
}

func TestHungarianTwoObjects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assignment = AssignmentHungarian
	tracker, err := NewTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}

	left := Detection{Box: geom.NewRect(0.1, 0.1, 0.3, 0.3), Confidence: 0.9, Category: "FASHION"}
	right := Detection{Box: geom.NewRect(0.6, 0.6, 0.8, 0.8), Confidence: 0.9, Category: "FASHION"}

	tracker.ProcessFrame([]Detection{left, right})
	// Reversed input order must not cross-assign the pairs
	tracker.ProcessFrame([]Detection{right, left})

	live := tracker.Live()
	if len(live) != 2 {
		t.Fatalf("expected two candidates, got %d", len(live))
	}
	for i, cand := range live {
		if cand.Observations() != 2 {
			t.Errorf("candidate %d: expected 2 observations, got %d", i, cand.Observations())
		}
	}
}

func TestLongRunStablePosition(t *testing.T) {
	// A stationary object must keep matching its own candidate indefinitely,
	// including boxes barely above the area floor where a small prediction
	// bias is enough to drop the spatial score below the match threshold.
	boxes := []geom.Rect{
		geom.NewRect(0.5, 0.5, 0.572, 0.572), // area just above default MinBoxArea
		geom.NewRect(0.5, 0.5, 0.6, 0.6),
	}
	for _, box := range boxes {
		tracker := NewDefaultTracker()
		det := Detection{Box: box, Confidence: 0.9, Category: "FASHION"}
		for frame := 1; frame <= 100; frame++ {
			tracker.ProcessFrame([]Detection{det})
			if live := len(tracker.Live()); live != 1 {
				t.Fatalf("box %+v frame %d: expected 1 candidate, got %d", box, frame, live)
			}
		}

		cand := tracker.Live()[0]
		if cand.Observations() != 100 {
			t.Errorf("box %+v: expected 100 observations, got %d", box, cand.Observations())
		}
		// The predicted center must settle on the true center, not drift to a
		// steady-state offset
		center := box.Center()
		predicted := cand.PredictedBox().Center()
		if predicted.DistanceTo(center) > 0.02 {
			t.Errorf("box %+v: predicted center %+v drifted from true center %+v", box, predicted, center)
		}
	}
}

func TestDuplicateTrackingIDCreatesNewCandidate(t *testing.T) {
	box := geom.NewRect(0.1, 0.1, 0.4, 0.4)
	withID := Detection{TrackingID: "veh-1", Box: box, Confidence: 0.9, Category: "FASHION"}
	anonymous := Detection{Box: box, Confidence: 0.9, Category: "FASHION"}

	for _, assignment := range []Assignment{AssignmentGreedy, AssignmentHungarian} {
		cfg := DefaultConfig()
		cfg.Assignment = assignment
		tracker, err := NewTracker(cfg)
		if err != nil {
			t.Fatal(err)
		}
		tracker.SetIDSource(sequentialIDs())

		// Two overlapping candidates: one with id continuity, one without
		tracker.ProcessFrame([]Detection{withID, anonymous})
		if len(tracker.Live()) != 2 {
			t.Fatalf("assignment %d: expected 2 candidates after first frame, got %d", assignment, len(tracker.Live()))
		}

		// The second veh-1 detection must open a new candidate, not claim the
		// anonymous one spatially
		tracker.ProcessFrame([]Detection{withID, withID})
		live := tracker.Live()
		if len(live) != 3 {
			t.Fatalf("assignment %d: expected 3 candidates, got %d", assignment, len(live))
		}
		if live[0].Observations() != 2 {
			t.Errorf("assignment %d: id-matched candidate should have 2 observations, got %d", assignment, live[0].Observations())
		}
		if live[1].Observations() != 1 {
			t.Errorf("assignment %d: anonymous candidate must stay unclaimed, got %d observations", assignment, live[1].Observations())
		}
		if live[2].ID() == "veh-1" {
			t.Errorf("assignment %d: duplicate id detection must get a surrogate id", assignment)
		}
	}
}

func TestReset(t *testing.T) {
	tracker := NewDefaultTracker()
	thumb := &fakeThumb{quality: 0.5}
	det := stableDetection(0.9)
	det.Thumbnail = thumb
	tracker.ProcessFrame([]Detection{det})

	tracker.Reset()
	if len(tracker.Live()) != 0 {
		t.Error("reset should remove all candidates")
	}
	if tracker.Frame() != 0 {
		t.Errorf("reset should clear the frame counter, got %d", tracker.Frame())
	}
	if !thumb.released {
		t.Error("reset should release candidate thumbnails")
	}
}

func TestConfigValidate(t *testing.T) {
	bad := DefaultConfig()
	bad.MinFramesToConfirm = 0
	if _, err := NewTracker(bad); err == nil {
		t.Error("expected error for min_frames_to_confirm = 0")
	}

	bad = DefaultConfig()
	bad.MinConfidence = 1.5
	if _, err := NewTracker(bad); err == nil {
		t.Error("expected error for out-of-range min_confidence")
	}

	bad = DefaultConfig()
	bad.FrameInterval = 0
	if _, err := NewTracker(bad); err == nil {
		t.Error("expected error for zero frame_interval")
	}
}

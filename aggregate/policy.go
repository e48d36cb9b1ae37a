package aggregate

// Decision is the outcome of the merge policy for one detection event.
type Decision uint8

const (
	// CreateNew means no existing item matched above threshold.
	CreateNew Decision = iota
	// Merge means the event belongs to an existing item.
	Merge
)

func (d Decision) String() string {
	if d == Merge {
		return "merge"
	}
	return "create_new"
}

// Match is the result of scanning existing items for a detection event.
type Match struct {
	// ItemID is the best matching item, empty when no item scored above zero.
	ItemID string
	// Similarity is the best score found.
	Similarity float64
	// Decision is Merge when Similarity reached the effective threshold.
	Decision Decision
}

// Policy scans existing items for the best similarity match and applies the
// effective threshold. It is stateless except for an optional runtime
// threshold override layered over the static config value.
type Policy struct {
	cfg      Config
	override *float64
}

// NewPolicy creates a Policy with the given configuration.
func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Decide scans every given item and returns the best match with the merge
// decision. Strict greater-than comparison keeps the first item on ties; the
// caller supplies items in a stable order. No mutation occurs here.
func (p *Policy) Decide(event Event, items []*Item) Match {
	bestID := ""
	bestScore := 0.0
	for _, item := range items {
		score := Score(event, item, p.cfg)
		if score > bestScore {
			bestScore = score
			bestID = item.ID
		}
	}
	match := Match{
		ItemID:     bestID,
		Similarity: bestScore,
		Decision:   CreateNew,
	}
	if bestID != "" && bestScore >= p.Threshold() {
		match.Decision = Merge
	}
	return match
}

// SetThreshold installs a runtime threshold override, clamped to [0,1].
// Passing nil removes the override and restores the configured value.
func (p *Policy) SetThreshold(value *float64) {
	if value == nil {
		p.override = nil
		return
	}
	clamped := *value
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}
	p.override = &clamped
}

// Threshold returns the effective similarity threshold.
func (p *Policy) Threshold() float64 {
	if p.override != nil {
		return *p.override
	}
	return p.cfg.SimilarityThreshold
}

package track

import (
	"time"

	"github.com/cyclopcam/objtrack/pkg/geom"
)

// trackPool is the pair of track maps a session owns, kept as insertion-order
// slices rather than Go maps so that greedy association's ties are broken by
// insertion order, deterministically. Grounded on
// server/monitor/tracking.go's objectTracks/lostObjects pair.
type trackPool struct {
	tracks     []*TrackedObject
	lostTracks []*TrackedObject
}

func newTrackPool() *trackPool {
	return &trackPool{}
}

func (p *trackPool) removeTrack(t *TrackedObject) {
	for i, c := range p.tracks {
		if c == t {
			p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
			return
		}
	}
}

func (p *trackPool) removeLost(t *TrackedObject) {
	for i, c := range p.lostTracks {
		if c == t {
			p.lostTracks = append(p.lostTracks[:i], p.lostTracks[i+1:]...)
			return
		}
	}
}

// applyLifecycle runs the track lifecycle state machine for one frame against
// the association result already computed for `detections`. It mutates p in
// place and returns the ids that transitioned from Pending to Active this frame.
func (p *trackPool) applyLifecycle(detections []Detection, assoc associationResult, cfg *Config, settings Settings, now time.Time, ids *trackIDAllocator) []string {
	var newlyConfirmed []string

	matchedTracks := make(map[*TrackedObject]bool, len(assoc.matched)+len(assoc.revived))
	for _, t := range assoc.matched {
		matchedTracks[t] = true
	}

	// Revive lost tracks that were re-acquired this frame: move them back
	// into `tracks` as Pending with hits retained and lostFrames reset,
	// before the associated-update pass runs over them.
	for _, t := range assoc.revived {
		p.removeLost(t)
		t.state = Pending
		t.lostFrames = 0
		p.tracks = append(p.tracks, t)
		matchedTracks[t] = true
	}

	allMatches := make(map[*TrackedObject]Detection, len(matchedTracks))
	for detIdx, t := range assoc.matched {
		allMatches[t] = detections[detIdx]
	}
	for detIdx, t := range assoc.revived {
		allMatches[t] = detections[detIdx]
	}

	for _, t := range p.tracks {
		d, wasMatched := allMatches[t]
		if wasMatched {
			newlyConfirmed = append(newlyConfirmed, p.applyAssociatedUpdate(t, d, cfg, settings, now)...)
			continue
		}
		p.applyUnassociatedUpdate(t, cfg)
	}

	// Tracks that crossed maxMisses this pass must be moved out of `tracks`
	// after the loop above finishes iterating it. They start their time in
	// lostTracks at lostFrames=0, so the aging pass below must skip them.
	var stillActive []*TrackedObject
	freshlyLost := make(map[*TrackedObject]bool)
	for _, t := range p.tracks {
		if t.state == Lost {
			p.lostTracks = append(p.lostTracks, t)
			freshlyLost[t] = true
			continue
		}
		stillActive = append(stillActive, t)
	}
	p.tracks = stillActive

	// Unmatched detections become new tracks, entering Pending (or straight
	// to Active, when a caller has configured instant confirmation).
	for _, detIdx := range assoc.unmatched {
		d := detections[detIdx]
		params := resolveClassParams(d.ClassName, cfg.ClassDefaults, settings)
		t := &TrackedObject{
			Detection: d.clone(),
			id:        ids.Next(),
			hits:      1,
			misses:    0,
			state:     Pending,
			movement:  Movement{FirstSeen: now, Moving: false},
		}
		if params.MinConfirmationFrames <= 1 {
			t.state = Active
			newlyConfirmed = append(newlyConfirmed, t.id)
		}
		p.tracks = append(p.tracks, t)
	}

	// Lost tracks not revived this frame age out; evict anything over the
	// configured maxLostFrames budget.
	revivedSet := make(map[*TrackedObject]bool, len(assoc.revived))
	for _, t := range assoc.revived {
		revivedSet[t] = true
	}
	var stillLost []*TrackedObject
	maxLostFrames := cfg.MaxLostFrames
	if maxLostFrames <= 0 {
		maxLostFrames = DefaultMaxLostFrames
	}
	for _, t := range p.lostTracks {
		if revivedSet[t] {
			continue
		}
		if freshlyLost[t] {
			stillLost = append(stillLost, t)
			continue
		}
		t.lostFrames++
		if t.lostFrames > maxLostFrames {
			continue // evicted: dropped from both maps permanently
		}
		stillLost = append(stillLost, t)
	}
	p.lostTracks = stillLost

	return newlyConfirmed
}

// applyAssociatedUpdate updates a track that matched a detection this frame.
// It returns t.id in a one-element slice iff this update confirmed the track
// (Pending -> Active), else nil.
func (p *trackPool) applyAssociatedUpdate(t *TrackedObject, d Detection, cfg *Config, settings Settings, now time.Time) []string {
	var prevCentroid geom.Point
	hasPrevCentroid := t.BoundingBox != nil
	if hasPrevCentroid {
		prevCentroid = t.BoundingBox.Centroid()
	}

	t.ClassName = d.ClassName
	t.Score = d.Score
	t.BoundingBox = d.BoundingBox
	t.Label = d.Label
	if d.History != nil {
		t.History = d.History
	}

	t.hits++
	t.misses = 0

	params := resolveClassParams(t.ClassName, cfg.ClassDefaults, settings)
	moving := false
	if hasPrevCentroid && t.BoundingBox != nil {
		moving = prevCentroid.Distance(t.BoundingBox.Centroid()) >= params.MovementThreshold
	}
	t.movement.Moving = moving
	t.movement.LastSeen = &now

	if t.state == Pending && t.hits >= params.MinConfirmationFrames {
		t.state = Active
		return []string{t.id}
	}
	return nil
}

// applyUnassociatedUpdate updates a track that had no matching detection this frame.
func (p *trackPool) applyUnassociatedUpdate(t *TrackedObject, cfg *Config) {
	t.misses++
	t.movement.Moving = false
	maxMisses := cfg.MaxMisses
	if maxMisses <= 0 {
		maxMisses = DefaultMaxMisses
	}
	if t.misses >= maxMisses {
		t.state = Lost
		t.lostFrames = 0
	}
}

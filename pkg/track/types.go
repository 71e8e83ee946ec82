// Package track implements a per-session object tracker: pre-filtering,
// spatial association, track lifecycle, and scene-change detection. It
// consumes a Frame and produces a FrameResult; it owns no camera I/O, no
// neural network, and no persistence.
package track

import (
	"time"

	"github.com/cyclopcam/objtrack/pkg/geom"
)

// MotionClassName is the reserved sentinel class. Detections carrying it are
// never tracked, and are always passed through untouched.
const MotionClassName = "motion"

// History is the caller-supplied provenance of a detection, carried through
// untouched. It plays no role in tracking.
type History struct {
	FirstSeen float64 `json:"firstSeen"`
	LastSeen  float64 `json:"lastSeen"`
}

// Movement describes how a tracked object has moved since it was first seen.
type Movement struct {
	FirstSeen time.Time  `json:"firstSeen"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	Moving    bool       `json:"moving"`
}

// Detection is one box+class+score, either raw detector input or tracker
// output. ID and Movement are only populated on output.
type Detection struct {
	ClassName   string     `json:"className"`
	Score       float32    `json:"score"`
	BoundingBox *geom.Box  `json:"boundingBox,omitempty"`
	Label       string     `json:"label,omitempty"`
	History     *History   `json:"history,omitempty"`
	ID          string     `json:"id,omitempty"`
	Movement    *Movement  `json:"movement,omitempty"`
}

// IsMotionSentinel reports whether d is the reserved "motion" pseudo-detection.
func (d Detection) IsMotionSentinel() bool {
	return d.ClassName == MotionClassName
}

// clone returns a copy of d with its own BoundingBox and History, safe to
// mutate independently (the pointer fields are never mutated in place anywhere
// in this package, but copying them keeps that invariant cheap to verify).
// Movement is not copied and stays shared.
func (d Detection) clone() Detection {
	c := d
	if d.BoundingBox != nil {
		b := *d.BoundingBox
		c.BoundingBox = &b
	}
	if d.History != nil {
		h := *d.History
		c.History = &h
	}
	return c
}

// TrackState is the lifecycle state of a TrackedObject.
type TrackState int

const (
	Pending TrackState = iota
	Active
	Lost
)

func (s TrackState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// TrackedObject is the tracker's internal bookkeeping for one persistent
// identity across frames. Detection carries the most recently observed
// class/score/box/label/history.
type TrackedObject struct {
	Detection
	id         string
	hits       int
	misses     int
	lostFrames int
	state      TrackState
	movement   Movement
}

func (t *TrackedObject) ID() string        { return t.id }
func (t *TrackedObject) Hits() int         { return t.hits }
func (t *TrackedObject) Misses() int       { return t.misses }
func (t *TrackedObject) LostFrames() int   { return t.lostFrames }
func (t *TrackedObject) State() TrackState { return t.state }

// asOutputDetection builds the Detection that gets surfaced in FrameResult.
func (t *TrackedObject) asOutputDetection() Detection {
	d := t.Detection.clone()
	d.ID = t.id
	mv := t.movement
	d.Movement = &mv
	return d
}

// FrameResult is the output of Session.Update for a single frame.
type FrameResult struct {
	Active      []Detection
	Pending     []Detection
	DetectionID string // empty means no scene-change token was emitted this frame
}

// Frame is the input to Session.Update.
type Frame struct {
	Detections      []Detection
	InputWidth      int
	InputHeight     int
	Timestamp       float64
}

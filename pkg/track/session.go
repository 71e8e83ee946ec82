package track

import (
	"math"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// Session is all tracker state for one video source. It is created lazily
// by Tracker on first use and lives for the life of the source's frame
// generator.
type Session struct {
	sessionID    string
	currentFrame int
	pool         *trackPool
	scene        *sceneChangeState
	ids          *trackIDAllocator
	lastUpdate   time.Time
}

func newSession() *Session {
	return &Session{
		sessionID: newSessionID(),
		pool:      newTrackPool(),
		scene:     newSceneChangeState(),
		ids:       &trackIDAllocator{},
	}
}

// SessionID returns the session's random hex identifier.
func (s *Session) SessionID() string { return s.sessionID }

// CurrentFrame returns the number of frames processed so far.
func (s *Session) CurrentFrame() int { return s.currentFrame }

// LastUpdate returns the wall-clock time Update was last called, so a host
// can arm its own no-frame watchdog; the tracker itself does not.
func (s *Session) LastUpdate() time.Time { return s.lastUpdate }

func timestampToTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// splitMalformed separates detections that are excluded from tracking
// (missing boundingBox, or the reserved "motion" sentinel class) from the
// ones eligible for the tracking pipeline. Malformed detections are passed
// through unchanged.
func splitMalformed(detections []Detection) (eligible, passthrough []Detection) {
	eligible = make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.BoundingBox == nil || d.IsMotionSentinel() {
			passthrough = append(passthrough, d.clone())
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible, passthrough
}

// appendMotionSentinels appends one motion pseudo-detection per boxed entry
// in boxed, or a single bare sentinel if boxed has none with a box, and
// returns active with the result appended. boxed must hold only the
// tracker-derived detections, not any already-"motion" passthrough input,
// or sentinels would be generated for sentinels.
func appendMotionSentinels(active, boxed []Detection) []Detection {
	appended := 0
	for _, d := range boxed {
		if d.BoundingBox != nil {
			active = append(active, Detection{ClassName: MotionClassName, Score: 1, BoundingBox: d.BoundingBox})
			appended++
		}
	}
	if appended == 0 {
		active = append(active, Detection{ClassName: MotionClassName, Score: 1})
	}
	return active
}

// Update runs one frame through the tracker. It mutates the session's state
// in place exactly once, and never fails: malformed detections are excluded
// from tracking and passed through unchanged.
func (s *Session) Update(frame Frame, cfg *Config, settings Settings, basicOnly bool) *FrameResult {
	s.lastUpdate = time.Now()
	now := timestampToTime(frame.Timestamp)
	eligible, passthrough := splitMalformed(frame.Detections)
	filtered := prefilter(eligible, frame.InputWidth, frame.InputHeight, cfg, settings)

	result := &FrameResult{}

	if basicOnly || settings.BasicDetectionsOnly() {
		active := make([]Detection, 0, len(filtered)+len(passthrough))
		active = append(active, filtered...)
		active = appendMotionSentinels(active, filtered)
		active = append(active, passthrough...)
		result.Active = active
		s.currentFrame++
		return result
	}

	assoc := associatorFor(cfg).associate(filtered, s.pool.tracks, s.pool.lostTracks, cfg, settings)
	newlyConfirmed := s.pool.applyLifecycle(filtered, assoc, cfg, settings, now, s.ids)
	detectionID := s.scene.update(s.pool, newlyConfirmed, now, s.sessionID, s.currentFrame)

	active := make([]Detection, 0, len(s.pool.tracks)+len(passthrough))
	var pending []Detection
	for _, t := range s.pool.tracks {
		switch t.state {
		case Active:
			active = append(active, t.asOutputDetection())
		case Pending:
			pending = append(pending, t.asOutputDetection())
		}
	}
	active = appendMotionSentinels(active, active)
	active = append(active, passthrough...)

	result.Active = active
	result.Pending = pending
	result.DetectionID = detectionID

	s.currentFrame++
	return result
}

// Tracker owns one Session per source, keyed by an arbitrary caller-chosen
// source id (e.g. a camera id). Grounded on server/monitor's per-camera
// tracker map, generalized from camera ids to opaque source keys.
type Tracker struct {
	cfg      *Config
	log      logs.Log
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewTracker constructs a Tracker from a construction config. cfg is treated
// as read-only shared configuration; mutating it between Update calls takes
// effect on the next call for every session.
func NewTracker(cfg *Config) *Tracker {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Tracker{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// SetLog attaches a diagnostic logger, the way a host attaches Monitor.Log in
// the teacher repo. A Tracker with no log attached runs silently.
func (tr *Tracker) SetLog(log logs.Log) {
	tr.log = log
}

// Session returns the session for sourceID, creating it on first use.
func (tr *Tracker) Session(sourceID string) *Session {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	s, ok := tr.sessions[sourceID]
	if !ok {
		s = newSession()
		tr.sessions[sourceID] = s
		if tr.log != nil {
			tr.log.Debugf("track: new session %v for source %v", s.sessionID, sourceID)
		}
	}
	return s
}

// CloseSession drops all state for sourceID. The host is responsible for
// calling this once a source's frame generator completes or is cancelled.
func (tr *Tracker) CloseSession(sourceID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if s, ok := tr.sessions[sourceID]; ok && tr.log != nil {
		tr.log.Debugf("track: closing session %v for source %v", s.sessionID, sourceID)
	}
	delete(tr.sessions, sourceID)
}

// Update runs one frame for sourceID, creating its Session on first use, and
// using the passed settings as that call's configuration snapshot.
func (tr *Tracker) Update(sourceID string, frame Frame, settings Settings, basicOnly bool) *FrameResult {
	return tr.Session(sourceID).Update(frame, tr.cfg, settings, basicOnly)
}

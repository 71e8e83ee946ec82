package track

import (
	"fmt"
	"time"
)

// sceneChangeState is the scene-change detector's persistent bookkeeping,
// carried across frames by Session.
type sceneChangeState struct {
	lastActiveIds   map[string]bool
	lastDetectionAt *time.Time
}

func newSceneChangeState() *sceneChangeState {
	return &sceneChangeState{lastActiveIds: map[string]bool{}}
}

// update computes this frame's activeIds from pool, decides whether a fresh
// detectionId should be emitted, and advances lastActiveIds/lastDetectionAt.
// Returns the emitted detectionId, or "" if none.
func (s *sceneChangeState) update(pool *trackPool, newlyConfirmed []string, now time.Time, sessionID string, currentFrame int) string {
	activeIds := make(map[string]bool)
	for _, t := range pool.tracks {
		if t.state == Active {
			activeIds[t.id] = true
		}
	}

	emit := len(newlyConfirmed) > 0

	if !emit && len(s.lastActiveIds) == 0 && len(activeIds) > 0 {
		emit = true // first confirmed frame
	}

	if !emit {
		for id := range s.lastActiveIds {
			if !activeIds[id] {
				emit = true // disappearance
				break
			}
		}
	}

	if !emit && len(activeIds) > 0 && s.lastDetectionAt != nil && now.Sub(*s.lastDetectionAt) > 5*time.Second {
		emit = true // periodic refresh
	}

	s.lastActiveIds = activeIds

	if !emit {
		return ""
	}
	s.lastDetectionAt = &now
	return fmt.Sprintf("%s-%d", sessionID, currentFrame)
}

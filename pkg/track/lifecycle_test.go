package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLifecycleConfirmsAfterMinFrames(t *testing.T) {
	cfg := NewConfig()
	cfg.ClassDefaults.MinConfirmationFrames = 3
	pool := newTrackPool()
	ids := &trackIDAllocator{}
	now := time.Unix(0, 0)

	det := Detection{ClassName: "person", Score: 0.9, BoundingBox: box(10, 10, 50, 50)}

	for i := 0; i < 2; i++ {
		assoc := greedyIoUAssociator{}.associate([]Detection{det}, pool.tracks, pool.lostTracks, cfg, nil)
		pool.applyLifecycle([]Detection{det}, assoc, cfg, nil, now, ids)
		require.Len(t, pool.tracks, 1)
		require.Equal(t, Pending, pool.tracks[0].state)
	}

	assoc := greedyIoUAssociator{}.associate([]Detection{det}, pool.tracks, pool.lostTracks, cfg, nil)
	confirmed := pool.applyLifecycle([]Detection{det}, assoc, cfg, nil, now, ids)
	require.Equal(t, Active, pool.tracks[0].state)
	require.Equal(t, []string{pool.tracks[0].id}, confirmed)
}

func TestLifecycleInstantActiveWhenMinConfirmationFramesIsZero(t *testing.T) {
	cfg := NewConfig()
	cfg.ClassDefaults.MinConfirmationFrames = 0
	// resolveClassParams treats a zero ClassDefaults field as "use the package
	// default", so the 0 above alone would resolve to 3; a per-class override
	// in settings is applied as given, 0 included.
	settings := Settings{"person-minConfirmationFrames": 0}
	pool := newTrackPool()
	ids := &trackIDAllocator{}
	det := Detection{ClassName: "person", Score: 0.9, BoundingBox: box(10, 10, 50, 50)}

	assoc := greedyIoUAssociator{}.associate([]Detection{det}, pool.tracks, pool.lostTracks, cfg, settings)
	pool.applyLifecycle([]Detection{det}, assoc, cfg, settings, time.Unix(0, 0), ids)
	require.Equal(t, Active, pool.tracks[0].state)
}

func TestLifecycleMovesToLostAfterMaxMisses(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxMisses = 2
	pool := newTrackPool()
	active := trackWithBox("1", "person", 10, 10, 50, 50)
	active.hits = 5
	pool.tracks = append(pool.tracks, active)
	ids := &trackIDAllocator{}

	for i := 0; i < 2; i++ {
		assoc := associationResult{matched: map[int]*TrackedObject{}, revived: map[int]*TrackedObject{}}
		pool.applyLifecycle(nil, assoc, cfg, nil, time.Unix(0, 0), ids)
	}

	require.Empty(t, pool.tracks)
	require.Len(t, pool.lostTracks, 1)
	require.Equal(t, Lost, pool.lostTracks[0].state)
}

func TestLifecycleEvictsAfterMaxLostFrames(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxLostFrames = 2
	pool := newTrackPool()
	lost := trackWithBox("1", "person", 10, 10, 50, 50)
	lost.state = Lost
	pool.lostTracks = append(pool.lostTracks, lost)
	ids := &trackIDAllocator{}

	for i := 0; i < 3; i++ {
		assoc := associationResult{matched: map[int]*TrackedObject{}, revived: map[int]*TrackedObject{}}
		pool.applyLifecycle(nil, assoc, cfg, nil, time.Unix(0, 0), ids)
	}

	require.Empty(t, pool.lostTracks)
	require.Empty(t, pool.tracks)
}

func TestLifecycleComputesMovement(t *testing.T) {
	cfg := NewConfig()
	cfg.ClassDefaults.MovementThreshold = 10
	cfg.ClassDefaults.MinConfirmationFrames = 1
	pool := newTrackPool()
	pool.tracks = append(pool.tracks, trackWithBox("1", "person", 10, 10, 50, 50))
	ids := &trackIDAllocator{}

	moved := Detection{ClassName: "person", Score: 0.9, BoundingBox: box(80, 10, 50, 50)}
	assoc := associationResult{
		matched: map[int]*TrackedObject{0: pool.tracks[0]},
		revived: map[int]*TrackedObject{},
	}
	pool.applyLifecycle([]Detection{moved}, assoc, cfg, nil, time.Unix(0, 0), ids)
	require.True(t, pool.tracks[0].movement.Moving)
}

func TestLifecycleNeverRegressesToPending(t *testing.T) {
	cfg := NewConfig()
	pool := newTrackPool()
	active := trackWithBox("1", "person", 10, 10, 50, 50)
	active.hits = 5
	pool.tracks = append(pool.tracks, active)
	ids := &trackIDAllocator{}

	assoc := associationResult{matched: map[int]*TrackedObject{}, revived: map[int]*TrackedObject{}}
	pool.applyLifecycle(nil, assoc, cfg, nil, time.Unix(0, 0), ids)
	require.NotEqual(t, Pending, pool.tracks[0].state)
}

package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSceneChangeEmitsOnFirstConfirmation(t *testing.T) {
	pool := newTrackPool()
	pool.tracks = append(pool.tracks, trackWithBox("1", "person", 10, 10, 50, 50))
	scene := newSceneChangeState()

	id := scene.update(pool, []string{"1"}, time.Unix(0, 0), "abcd", 2)
	require.Equal(t, "abcd-2", id)
}

func TestSceneChangeSilentWhenNothingChanges(t *testing.T) {
	pool := newTrackPool()
	pool.tracks = append(pool.tracks, trackWithBox("1", "person", 10, 10, 50, 50))
	scene := newSceneChangeState()

	scene.update(pool, []string{"1"}, time.Unix(0, 0), "abcd", 0)
	id := scene.update(pool, nil, time.Unix(1, 0), "abcd", 1)
	require.Empty(t, id)
}

func TestSceneChangeEmitsOnDisappearance(t *testing.T) {
	pool := newTrackPool()
	pool.tracks = append(pool.tracks, trackWithBox("1", "person", 10, 10, 50, 50))
	scene := newSceneChangeState()
	scene.update(pool, []string{"1"}, time.Unix(0, 0), "abcd", 0)

	pool.tracks = nil // the track disappeared (lost/evicted)
	id := scene.update(pool, nil, time.Unix(1, 0), "abcd", 1)
	require.Equal(t, "abcd-1", id)
}

func TestSceneChangeEmitsOnPeriodicRefresh(t *testing.T) {
	pool := newTrackPool()
	pool.tracks = append(pool.tracks, trackWithBox("1", "person", 10, 10, 50, 50))
	scene := newSceneChangeState()
	scene.update(pool, []string{"1"}, time.Unix(0, 0), "abcd", 0)

	id := scene.update(pool, nil, time.Unix(6, 0), "abcd", 1)
	require.Equal(t, "abcd-1", id)
}

func TestSceneChangeNoRefreshBeforeFiveSeconds(t *testing.T) {
	pool := newTrackPool()
	pool.tracks = append(pool.tracks, trackWithBox("1", "person", 10, 10, 50, 50))
	scene := newSceneChangeState()
	scene.update(pool, []string{"1"}, time.Unix(0, 0), "abcd", 0)

	id := scene.update(pool, nil, time.Unix(4, 0), "abcd", 1)
	require.Empty(t, id)
}

package track

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func trackWithBox(id, className string, x, y, w, h float32) *TrackedObject {
	bb := box(x, y, w, h)
	return &TrackedObject{
		Detection: Detection{ClassName: className, Score: 0.9, BoundingBox: bb},
		id:        id,
		hits:      3,
		state:     Active,
	}
}

func TestGreedyIoUMatchesOverlappingTrack(t *testing.T) {
	cfg := NewConfig()
	tracks := []*TrackedObject{trackWithBox("1", "person", 10, 10, 50, 50)}
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(12, 10, 50, 50)},
	}
	res := greedyIoUAssociator{}.associate(dets, tracks, nil, cfg, nil)
	require.Equal(t, tracks[0], res.matched[0])
	require.Empty(t, res.unmatched)
}

func TestGreedyIoUNoOverlapCreatesNewTrack(t *testing.T) {
	cfg := NewConfig()
	tracks := []*TrackedObject{trackWithBox("1", "person", 10, 10, 50, 50)}
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(900, 900, 50, 50)},
	}
	res := greedyIoUAssociator{}.associate(dets, tracks, nil, cfg, nil)
	require.Empty(t, res.matched)
	require.Equal(t, []int{0}, res.unmatched)
}

func TestGreedyIoUClassMismatchDoesNotMatch(t *testing.T) {
	cfg := NewConfig()
	tracks := []*TrackedObject{trackWithBox("1", "car", 10, 10, 50, 50)}
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(10, 10, 50, 50)},
	}
	res := greedyIoUAssociator{}.associate(dets, tracks, nil, cfg, nil)
	require.Empty(t, res.matched)
	require.Equal(t, []int{0}, res.unmatched)
}

func TestGreedyIoUReacquiresLostTrack(t *testing.T) {
	cfg := NewConfig()
	lost := trackWithBox("1", "person", 10, 10, 50, 50)
	lost.state = Lost
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(12, 10, 50, 50)},
	}
	res := greedyIoUAssociator{}.associate(dets, nil, []*TrackedObject{lost}, cfg, nil)
	require.Empty(t, res.matched)
	require.Equal(t, lost, res.revived[0])
}

func TestGreedyIoUTieBrokenByInsertionOrder(t *testing.T) {
	cfg := NewConfig()
	a := trackWithBox("1", "person", 10, 10, 50, 50)
	b := trackWithBox("2", "person", 10, 10, 50, 50) // identical box: IoU tie
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(10, 10, 50, 50)},
	}
	res := greedyIoUAssociator{}.associate(dets, []*TrackedObject{a, b}, nil, cfg, nil)
	require.Equal(t, a, res.matched[0])
}

func TestHungarianAgreesWithGreedyOnTrivialCase(t *testing.T) {
	cfg := NewConfig()
	cfg.UseMatrix = true
	tracks := []*TrackedObject{trackWithBox("1", "person", 10, 10, 50, 50)}
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(12, 10, 50, 50)},
	}
	res := hungarianAssociator{}.associate(dets, tracks, nil, cfg, nil)
	require.Equal(t, tracks[0], res.matched[0])
}

func TestHungarianIgnoresClassMismatch(t *testing.T) {
	cfg := NewConfig()
	tracks := []*TrackedObject{trackWithBox("1", "car", 10, 10, 50, 50)}
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(10, 10, 50, 50)},
	}
	res := hungarianAssociator{}.associate(dets, tracks, nil, cfg, nil)
	require.Empty(t, res.matched)
	require.Equal(t, []int{0}, res.unmatched)
}

func TestHungarianDoesNotReacquireLostTracks(t *testing.T) {
	cfg := NewConfig()
	lost := trackWithBox("1", "person", 10, 10, 50, 50)
	lost.state = Lost
	dets := []Detection{
		{ClassName: "person", Score: 0.9, BoundingBox: box(12, 10, 50, 50)},
	}
	res := hungarianAssociator{}.associate(dets, nil, []*TrackedObject{lost}, cfg, nil)
	require.Empty(t, res.matched)
	require.Empty(t, res.revived)
	require.Equal(t, []int{0}, res.unmatched)
}

func TestSolveAssignmentRectangular(t *testing.T) {
	// 2 detections, 3 tracks: row 0 cheapest with col 1, row 1 cheapest with col 0.
	cost := [][]float64{
		{0.9, 0.1, 0.9},
		{0.1, 0.9, 0.9},
	}
	result := solveAssignment(cost)
	require.Equal(t, 1, result[0])
	require.Equal(t, 0, result[1])
}

package track

import (
	flatbush "github.com/bmharper/flatbush-go"
)

// associationResult is what an Associator produces for one frame: which
// detections matched an existing track (either still active/pending, or
// revived from the lost pool), and which detections have no match at all
// and must become new tracks.
type associationResult struct {
	matched    map[int]*TrackedObject // detection index -> track already in `tracks`
	revived    map[int]*TrackedObject // detection index -> track pulled out of `lostTracks`
	unmatched  []int                  // detection indices with no track at all
}

func newAssociationResult() associationResult {
	return associationResult{
		matched: map[int]*TrackedObject{},
		revived: map[int]*TrackedObject{},
	}
}

// associator assigns detections to tracks by spatial overlap. GreedyIoU and
// Hungarian are interchangeable implementations; they agree on trivial
// single-candidate scenes but may disagree on degenerate many-to-many ones,
// since greedy breaks ties by insertion order while Hungarian optimizes
// globally.
type associator interface {
	associate(detections []Detection, tracks []*TrackedObject, lostTracks []*TrackedObject, cfg *Config, settings Settings) associationResult
}

func associatorFor(cfg *Config) associator {
	if cfg.strategy() == HungarianStrategy {
		return hungarianAssociator{}
	}
	return greedyIoUAssociator{}
}

// ---- Greedy-IoU ----

type greedyIoUAssociator struct{}

func (greedyIoUAssociator) associate(detections []Detection, tracks []*TrackedObject, lostTracks []*TrackedObject, cfg *Config, settings Settings) associationResult {
	res := newAssociationResult()

	trackIndex := newCandidateIndex(tracks)
	lostIndex := newCandidateIndex(lostTracks)
	trackTaken := make([]bool, len(tracks))
	lostTaken := make([]bool, len(lostTracks))

	for i, d := range detections {
		params := resolveClassParams(d.ClassName, cfg.ClassDefaults, settings)

		if j := bestIoUMatch(d, tracks, trackIndex, trackTaken, params.IoUThreshold); j != -1 {
			trackTaken[j] = true
			res.matched[i] = tracks[j]
			continue
		}
		if j := bestIoUMatch(d, lostTracks, lostIndex, lostTaken, params.IoUThreshold); j != -1 {
			lostTaken[j] = true
			res.revived[i] = lostTracks[j]
			continue
		}
		res.unmatched = append(res.unmatched, i)
	}
	return res
}

// candidateIndex is a flatbush spatial index over a candidate slice's boxed
// entries, the same nearby-search structure classAwareNMS builds over
// detections. fbToCandidate maps a flatbush hit back to its index in the
// original candidate slice, since candidates without a box are never added.
type candidateIndex struct {
	fb            *flatbush.Flatbush[float32]
	fbToCandidate []int
}

func newCandidateIndex(candidates []*TrackedObject) candidateIndex {
	if len(candidates) == 0 {
		return candidateIndex{}
	}
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(candidates))
	fbToCandidate := make([]int, 0, len(candidates))
	for j, cand := range candidates {
		if cand.BoundingBox == nil {
			continue
		}
		b := cand.BoundingBox
		fb.Add(b.X, b.Y, b.X2(), b.Y2())
		fbToCandidate = append(fbToCandidate, j)
	}
	if len(fbToCandidate) == 0 {
		return candidateIndex{}
	}
	fb.Finish()
	return candidateIndex{fb: fb, fbToCandidate: fbToCandidate}
}

// bestIoUMatch returns the index in candidates of the same-class candidate
// with the highest IoU against d that strictly exceeds threshold, skipping
// any candidate already marked taken. Ties are broken by insertion order
// (the candidate earliest in candidates wins). Querying idx's tight-box search
// rather than scanning candidates directly is safe because any candidate
// with IoU>0 against d necessarily overlaps d's tight box, and the reverse
// isn't needed since IoU<=0 candidates never win anyway.
func bestIoUMatch(d Detection, candidates []*TrackedObject, idx candidateIndex, taken []bool, threshold float32) int {
	if d.BoundingBox == nil || idx.fb == nil {
		return -1
	}
	b := d.BoundingBox
	best := -1
	bestIoU := threshold
	for _, hit := range idx.fb.Search(b.X, b.Y, b.X2(), b.Y2()) {
		j := idx.fbToCandidate[hit]
		cand := candidates[j]
		if taken[j] || cand.ClassName != d.ClassName {
			continue
		}
		iou := b.IoU(*cand.BoundingBox)
		if iou <= threshold {
			continue
		}
		// fb.Search doesn't promise insertion order, so the tie-break has
		// to be made explicit here rather than relying on loop order.
		if best == -1 || iou > bestIoU || (iou == bestIoU && j < best) {
			bestIoU = iou
			best = j
		}
	}
	return best
}

// ---- Hungarian ----

type hungarianAssociator struct{}

func (hungarianAssociator) associate(detections []Detection, tracks []*TrackedObject, lostTracks []*TrackedObject, cfg *Config, settings Settings) associationResult {
	res := newAssociationResult()

	n := len(detections)
	m := len(tracks)
	if n == 0 {
		return res
	}
	if m == 0 {
		for i := range detections {
			res.unmatched = append(res.unmatched, i)
		}
		return res
	}

	cost := make([][]float64, n)
	for i, d := range detections {
		cost[i] = make([]float64, m)
		for j, t := range tracks {
			if d.BoundingBox == nil || t.BoundingBox == nil {
				cost[i][j] = 1
				continue
			}
			cost[i][j] = 1 - float64(d.BoundingBox.IoU(*t.BoundingBox))
		}
	}

	assignment := solveAssignment(cost)

	matchedDet := make([]bool, n)
	for i, j := range assignment {
		if j < 0 || j >= m {
			continue
		}
		d := detections[i]
		t := tracks[j]
		if d.ClassName != t.ClassName {
			continue
		}
		params := resolveClassParams(d.ClassName, cfg.ClassDefaults, settings)
		if cost[i][j] >= float64(1-params.IoUThreshold) {
			continue
		}
		res.matched[i] = t
		matchedDet[i] = true
	}
	for i := range detections {
		if !matchedDet[i] {
			res.unmatched = append(res.unmatched, i)
		}
	}
	// Lost-track re-acquisition is intentionally not performed in Hungarian
	// mode: the global assignment already has all it needs from the active
	// pool, and mixing in a second, differently-costed candidate pool would
	// break the optimality guarantee the algorithm is chosen for.
	return res
}

// solveAssignment solves the rectangular minimum-cost assignment problem with
// the classic O(n^3) Hungarian (Kuhn-Munkres) algorithm, padding the
// non-square n x m cost matrix with zero-cost dummy rows/columns so the
// square solver can run unmodified. Returns, for each row i, the column it
// was assigned to, or -1 if i was assigned to a dummy column.
//
// No library in the example pack ships a general rectangular assignment
// solver, so this is a direct, stdlib-only port of the textbook algorithm.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	size := max(n, m)

	a := make([][]float64, size)
	for i := range a {
		a[i] = make([]float64, size)
		for j := range a[i] {
			if i < n && j < m {
				a[i][j] = cost[i][j]
			}
			// dummy rows/cols cost 0, so they never outbid a real pairing
			// when a real pairing has cost 0, and never prevent one from
			// being chosen when it's strictly cheaper than "no match".
		}
	}

	const inf = 1e18
	u := make([]float64, size+1)
	v := make([]float64, size+1)
	p := make([]int, size+1) // p[j] = row assigned to column j (1-based), 0 = none
	way := make([]int, size+1)

	for i := 1; i <= size; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, size+1)
		used := make([]bool, size+1)
		for j := range minv {
			minv[j] = inf
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= size; j++ {
				if used[j] {
					continue
				}
				cur := a[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= size; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	for j := 1; j <= size; j++ {
		i := p[j] - 1
		if i >= 0 && i < n && j-1 < m {
			result[i] = j - 1
		}
	}
	return result
}

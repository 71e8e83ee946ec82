package track

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

// oversizeRatio is the threshold above which a detection's box covering
// this fraction of the frame (or more) is assumed to be a detector
// whole-image false positive.
const oversizeRatio = 0.95

// prefilter runs oversize rejection, class/score filtering, and class-aware
// NMS, in that order. It never mutates its input, and returns a new slice
// of surviving detections.
func prefilter(detections []Detection, inputWidth, inputHeight int, cfg *Config, settings Settings) []Detection {
	frameArea := float32(inputWidth) * float32(inputHeight)

	survivors := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.IsMotionSentinel() {
			// Motion sentinels never enter the pre-filter; they are a tracker
			// output artifact, not detector input.
			continue
		}
		if d.BoundingBox == nil {
			// Malformed input is excluded from tracking by the caller
			// before it ever reaches here.
			continue
		}
		if frameArea > 0 && d.BoundingBox.Area()/frameArea >= oversizeRatio {
			continue
		}
		if !cfg.classIsEnabled(d.ClassName, settings) {
			continue
		}
		params := resolveClassParams(d.ClassName, cfg.ClassDefaults, settings)
		if d.Score < params.MinScore {
			continue
		}
		survivors = append(survivors, d)
	}

	return classAwareNMS(survivors, cfg, settings)
}

// classAwareNMS sorts by score descending and discards later detections of
// the same className whose IoU with an already-kept detection of that class
// exceeds that class's iouThreshold. Detections of different classes never
// suppress each other. Grounded on pkg/nn/merge.go's flatbush-indexed
// suppression pattern.
func classAwareNMS(detections []Detection, cfg *Config, settings Settings) []Detection {
	if len(detections) == 0 {
		return detections
	}

	order := make([]int, len(detections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return detections[order[i]].Score > detections[order[j]].Score
	})

	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(detections))
	for _, d := range detections {
		b := d.BoundingBox
		fb.Add(b.X, b.Y, b.X2(), b.Y2())
	}
	fb.Finish()

	suppressed := make([]bool, len(detections))
	kept := make([]Detection, 0, len(detections))
	for _, i := range order {
		if suppressed[i] {
			continue
		}
		d := detections[i]
		kept = append(kept, d)
		params := resolveClassParams(d.ClassName, cfg.ClassDefaults, settings)
		b := d.BoundingBox
		for _, j := range fb.Search(b.X, b.Y, b.X2(), b.Y2()) {
			if j == i || suppressed[j] {
				continue
			}
			other := detections[j]
			if other.ClassName != d.ClassName {
				continue
			}
			if b.IoU(*other.BoundingBox) > params.IoUThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

package facematch

import (
	"fmt"
	"slices"
)

// Face selection strategies used when a detector returns more than one face.
const (
	SelectFirst     = "first"
	SelectLargest   = "largest"
	SelectConfident = "confident"
)

// ComputeIoU calculates Intersection over Union between two bounding boxes.
func ComputeIoU(a, b BBox) float64 {
	ca, cb := a.Corners(), b.Corners()

	x1 := max(ca[0], cb[0])
	y1 := max(ca[1], cb[1])
	x2 := min(ca[2], cb[2])
	y2 := min(ca[3], cb[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

// DedupeFaces drops detections that overlap an earlier, more confident detection by more
// than iouThreshold. Input order is preserved for the survivors.
func DedupeFaces(faces []DetectedFace, iouThreshold float64) []DetectedFace {
	if len(faces) < 2 {
		return faces
	}

	order := make([]int, len(faces))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case faces[a].Confidence > faces[b].Confidence:
			return -1
		case faces[a].Confidence < faces[b].Confidence:
			return 1
		}
		return 0
	})

	dropped := make([]bool, len(faces))
	for i, fi := range order {
		if dropped[fi] {
			continue
		}
		for _, fj := range order[i+1:] {
			if !dropped[fj] && ComputeIoU(faces[fi].BBox, faces[fj].BBox) > iouThreshold {
				dropped[fj] = true
			}
		}
	}

	kept := make([]DetectedFace, 0, len(faces))
	for i, f := range faces {
		if !dropped[i] {
			kept = append(kept, f)
		}
	}
	return kept
}

// FilterByConfidence removes faces scored below minConfidence.
func FilterByConfidence(faces []DetectedFace, minConfidence float64) []DetectedFace {
	if minConfidence <= 0 {
		return faces
	}
	kept := make([]DetectedFace, 0, len(faces))
	for _, f := range faces {
		if f.Confidence >= minConfidence {
			kept = append(kept, f)
		}
	}
	return kept
}

// SelectFace picks the face to align. "first" keeps detector order.
func SelectFace(faces []DetectedFace, strategy string) (DetectedFace, error) {
	if len(faces) == 0 {
		return DetectedFace{}, fmt.Errorf("no faces to select from")
	}

	switch strategy {
	case "", SelectFirst:
		return faces[0], nil
	case SelectLargest:
		return slices.MaxFunc(faces, func(a, b DetectedFace) int {
			return cmpFloat(a.BBox.Area(), b.BBox.Area())
		}), nil
	case SelectConfident:
		return slices.MaxFunc(faces, func(a, b DetectedFace) int {
			return cmpFloat(a.Confidence, b.Confidence)
		}), nil
	default:
		return DetectedFace{}, fmt.Errorf("unknown face selection strategy %q", strategy)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

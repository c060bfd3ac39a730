package imagematch

import (
	"sort"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// nmsOverlap is the IoU above which two candidates count as the same hit.
const nmsOverlap = 0.3

// suppressOverlaps deduplicates candidate boxes with greedy non-maximum
// suppression: the highest-confidence candidate is kept and every remaining
// candidate overlapping it beyond the threshold is discarded.
func suppressOverlaps(matches []Match, overlap float64) []Match {
	if len(matches) == 0 {
		return nil
	}

	ordered := make([]Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	var keep []Match
	for len(ordered) > 0 {
		current := ordered[0]
		keep = append(keep, current)

		remaining := ordered[:0]
		for _, m := range ordered[1:] {
			if iou(current.Bounds, m.Bounds) <= overlap {
				remaining = append(remaining, m)
			}
		}
		ordered = remaining
	}
	return keep
}

// iou returns the intersection-over-union of two boxes. Boxes that do not
// overlap, or whose union has zero area, score 0.
func iou(a, b core.Bounds) float64 {
	left := max(a.Left, b.Left)
	top := max(a.Top, b.Top)
	right := min(a.Right, b.Right)
	bottom := min(a.Bottom, b.Bottom)

	if right < left || bottom < top {
		return 0
	}

	intersection := float64((right - left) * (bottom - top))
	areaA := float64((a.Right - a.Left) * (a.Bottom - a.Top))
	areaB := float64((b.Right - b.Left) * (b.Bottom - b.Top))

	union := areaA + areaB - intersection
	if union == 0 {
		return 0
	}
	return intersection / union
}

package imagematch

import (
	"math"
	"math/bits"
	"math/rand"
	"sort"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

const (
	// featureTargetCount caps how many keypoints the localizer works with.
	featureTargetCount = 2000

	fastThreshold = 20.0
	fastArcLength = 9

	// patchRadius bounds both the orientation patch and the descriptor
	// sampling pattern, so keypoints keep a safe border margin.
	patchRadius      = 15
	descriptorMargin = patchRadius + 1
	briefSigma       = 6.2

	ratioTestFactor = 0.75
	ransacReproj    = 5.0
	ransacMaxIters  = 2000
	ransacTarget    = 0.995
)

// fastCircle is the 16-pixel Bresenham circle of radius 3 around a corner
// candidate.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type keypoint struct {
	x, y  int
	score float64
	angle float64
}

// descriptor is a 256-bit binary descriptor compared by Hamming distance.
type descriptor [4]uint64

type featurePair struct {
	query, train int
	distance     int
}

// matchFeatures locates the template through keypoint correspondence. It
// detects oriented corners in both images, matches their binary descriptors
// with a ratio test, fits a homography with RANSAC, and projects the
// template corners into the frame. Confidence is the inlier fraction of the
// accepted pairs.
func matchFeatures(frame, tpl *grid, threshold float64) []Match {
	tplKp := detectKeypoints(tpl, featureTargetCount)
	frameKp := detectKeypoints(frame, featureTargetCount)
	if len(tplKp) < 4 || len(frameKp) == 0 {
		return nil
	}

	tplDesc := computeDescriptors(tpl, tplKp)
	frameDesc := computeDescriptors(frame, frameKp)

	good := matchDescriptors(tplDesc, frameDesc)
	if len(good) < minMatchCount(len(tplKp), threshold) {
		return nil
	}

	src := make([]point2, len(good))
	dst := make([]point2, len(good))
	for i, m := range good {
		src[i] = point2{float64(tplKp[m.query].x), float64(tplKp[m.query].y)}
		dst[i] = point2{float64(frameKp[m.train].x), float64(frameKp[m.train].y)}
	}

	h, inliers := estimateHomography(src, dst)
	if h == nil {
		return nil
	}
	confidence := float64(inliers) / float64(len(good))
	if confidence < threshold {
		return nil
	}

	w, ht := float64(tpl.w), float64(tpl.h)
	corners := [4]point2{{0, 0}, {0, ht - 1}, {w - 1, ht - 1}, {w - 1, 0}}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		px, py, ok := h.project(c.x, c.y)
		if !ok {
			return nil
		}
		minX = math.Min(minX, px)
		maxX = math.Max(maxX, px)
		minY = math.Min(minY, py)
		maxY = math.Max(maxY, py)
	}

	return []Match{{
		Confidence: confidence,
		Bounds: core.Bounds{
			Left:   int(minX),
			Top:    int(minY),
			Right:  int(maxX),
			Bottom: int(maxY),
		},
		Method: "feature_matching",
	}}
}

// minMatchCount is the accepted-pair floor: at least four pairs are needed
// for a homography, and at least the threshold fraction of the template
// keypoints must have matched.
func minMatchCount(keypoints int, threshold float64) int {
	n := int(math.Ceil(float64(keypoints) * threshold))
	if n < 4 {
		return 4
	}
	return n
}

// detectKeypoints runs segment-test corner detection with a 3x3 local
// maximum filter, keeps the strongest corners up to target, and assigns
// each an intensity-centroid orientation.
func detectKeypoints(g *grid, target int) []keypoint {
	if g.w <= 2*descriptorMargin || g.h <= 2*descriptorMargin {
		return nil
	}

	scores := make([]float64, g.w*g.h)
	for y := descriptorMargin; y < g.h-descriptorMargin; y++ {
		for x := descriptorMargin; x < g.w-descriptorMargin; x++ {
			scores[y*g.w+x] = fastScore(g, x, y)
		}
	}

	var pts []keypoint
	for y := descriptorMargin; y < g.h-descriptorMargin; y++ {
		for x := descriptorMargin; x < g.w-descriptorMargin; x++ {
			s := scores[y*g.w+x]
			if s <= 0 || !localMax(scores, g.w, x, y, s) {
				continue
			}
			pts = append(pts, keypoint{x: x, y: y, score: s})
		}
	}

	sort.SliceStable(pts, func(i, j int) bool { return pts[i].score > pts[j].score })
	if len(pts) > target {
		pts = pts[:target]
	}
	for i := range pts {
		pts[i].angle = orientation(g, pts[i].x, pts[i].y)
	}
	return pts
}

// fastScore runs the 9-of-16 segment test. A pixel is a corner when at
// least nine contiguous circle pixels are all brighter or all darker than
// the center beyond the threshold; the score is the summed contrast of the
// responding circle pixels.
func fastScore(g *grid, x, y int) float64 {
	center := g.at(x, y)
	var brighter, darker uint32
	for i, off := range fastCircle {
		v := g.at(x+off[0], y+off[1])
		if v > center+fastThreshold {
			brighter |= 1 << uint(i)
		} else if v < center-fastThreshold {
			darker |= 1 << uint(i)
		}
	}
	if !hasArc(brighter) && !hasArc(darker) {
		return 0
	}

	var score float64
	for i, off := range fastCircle {
		bit := uint32(1) << uint(i)
		if brighter&bit != 0 || darker&bit != 0 {
			score += math.Abs(g.at(x+off[0], y+off[1]) - center)
		}
	}
	return score
}

// hasArc reports whether the 16-bit ring mask contains a contiguous run of
// set bits long enough to pass the segment test, treating the ring as
// circular.
func hasArc(mask uint32) bool {
	m := uint64(mask) | uint64(mask)<<16
	run := 0
	for i := 0; i < 32; i++ {
		if m&(1<<uint(i)) != 0 {
			run++
			if run >= fastArcLength {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func localMax(scores []float64, w, x, y int, s float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if scores[(y+dy)*w+x+dx] >= s {
				return false
			}
		}
	}
	return true
}

// orientation computes the intensity-centroid angle of the circular patch
// around a keypoint.
func orientation(g *grid, x, y int) float64 {
	var m10, m01 float64
	for dy := -patchRadius; dy <= patchRadius; dy++ {
		for dx := -patchRadius; dx <= patchRadius; dx++ {
			if dx*dx+dy*dy > patchRadius*patchRadius {
				continue
			}
			v := g.at(x+dx, y+dy)
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return math.Atan2(m01, m10)
}

type samplePair struct {
	ax, ay, bx, by float64
}

// briefPattern is the fixed pseudo-random sampling pattern for the binary
// descriptor. The seed is constant so descriptors are stable across runs.
var briefPattern = makeBriefPattern()

func makeBriefPattern() [256]samplePair {
	rng := rand.New(rand.NewSource(42))
	point := func() (float64, float64) {
		for {
			x := rng.NormFloat64() * briefSigma
			y := rng.NormFloat64() * briefSigma
			if x*x+y*y <= patchRadius*patchRadius {
				return x, y
			}
		}
	}

	var pattern [256]samplePair
	for i := range pattern {
		ax, ay := point()
		bx, by := point()
		pattern[i] = samplePair{ax: ax, ay: ay, bx: bx, by: by}
	}
	return pattern
}

// computeDescriptors samples the steered pattern around each keypoint. The
// pattern is rotated by the keypoint's orientation so the descriptor is
// rotation tolerant.
func computeDescriptors(g *grid, pts []keypoint) []descriptor {
	descs := make([]descriptor, len(pts))
	for i, kp := range pts {
		cosA, sinA := math.Cos(kp.angle), math.Sin(kp.angle)
		var d descriptor
		for bit, p := range briefPattern {
			ax := int(math.Round(p.ax*cosA - p.ay*sinA))
			ay := int(math.Round(p.ax*sinA + p.ay*cosA))
			bx := int(math.Round(p.bx*cosA - p.by*sinA))
			by := int(math.Round(p.bx*sinA + p.by*cosA))
			if g.at(kp.x+ax, kp.y+ay) < g.at(kp.x+bx, kp.y+by) {
				d[bit/64] |= 1 << uint(bit%64)
			}
		}
		descs[i] = d
	}
	return descs
}

func hamming(a, b descriptor) int {
	return bits.OnesCount64(a[0]^b[0]) + bits.OnesCount64(a[1]^b[1]) +
		bits.OnesCount64(a[2]^b[2]) + bits.OnesCount64(a[3]^b[3])
}

// matchDescriptors brute-forces nearest and second-nearest neighbors for
// every query descriptor and keeps a pair only when it passes the ratio
// test.
func matchDescriptors(query, train []descriptor) []featurePair {
	if len(train) < 2 {
		return nil
	}
	var good []featurePair
	for qi := range query {
		best, second := 257, 257
		bestIdx := -1
		for ti := range train {
			d := hamming(query[qi], train[ti])
			if d < best {
				second = best
				best = d
				bestIdx = ti
			} else if d < second {
				second = d
			}
		}
		if float64(best) < ratioTestFactor*float64(second) {
			good = append(good, featurePair{query: qi, train: bestIdx, distance: best})
		}
	}
	return good
}

package imagematch

import (
	"math"
	"math/rand"
)

type point2 struct {
	x, y float64
}

// homography is a 3x3 projective transform in row-major order.
type homography struct {
	m [9]float64
}

// project maps a point through the transform. ok is false when the point
// lands on the plane at infinity.
func (h *homography) project(x, y float64) (px, py float64, ok bool) {
	d := h.m[6]*x + h.m[7]*y + h.m[8]
	if math.Abs(d) < 1e-12 {
		return 0, 0, false
	}
	return (h.m[0]*x + h.m[1]*y + h.m[2]) / d,
		(h.m[3]*x + h.m[4]*y + h.m[5]) / d,
		true
}

// estimateHomography fits a projective transform from src to dst with
// RANSAC, then refines it over the consensus set. It returns the transform
// and its inlier count, or nil when no consensus of at least four pairs
// exists. The sampler is seeded deterministically so repeated calls on the
// same input agree.
func estimateHomography(src, dst []point2) (*homography, int) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return nil, 0
	}

	rng := rand.New(rand.NewSource(1))
	var bestH *homography
	var bestInliers []int

	iters := ransacMaxIters
	for it := 0; it < iters; it++ {
		idx := sampleDistinct(rng, 4, n)
		h := fitHomography(gather(src, idx), gather(dst, idx))
		if h == nil {
			continue
		}
		inliers := inlierSet(h, src, dst)
		if len(inliers) > len(bestInliers) {
			bestH, bestInliers = h, inliers
			if needed := ransacIterations(float64(len(inliers)) / float64(n)); needed < iters {
				iters = max(needed, it+1)
			}
		}
	}
	if len(bestInliers) < 4 {
		return nil, 0
	}

	if refined := fitHomography(gather(src, bestInliers), gather(dst, bestInliers)); refined != nil {
		if inliers := inlierSet(refined, src, dst); len(inliers) >= len(bestInliers) {
			return refined, len(inliers)
		}
	}
	return bestH, len(bestInliers)
}

// ransacIterations is the standard adaptive bound: enough samples that an
// all-inlier draw happens with the target probability.
func ransacIterations(inlierRatio float64) int {
	if inlierRatio >= 1 {
		return 1
	}
	if inlierRatio <= 0 {
		return ransacMaxIters
	}
	denom := math.Log(1 - math.Pow(inlierRatio, 4))
	if denom >= 0 {
		return ransacMaxIters
	}
	needed := math.Log(1-ransacTarget) / denom
	if needed >= float64(ransacMaxIters) {
		return ransacMaxIters
	}
	return int(math.Ceil(needed))
}

func sampleDistinct(rng *rand.Rand, k, n int) []int {
	idx := make([]int, 0, k)
	for len(idx) < k {
		c := rng.Intn(n)
		dup := false
		for _, v := range idx {
			if v == c {
				dup = true
				break
			}
		}
		if !dup {
			idx = append(idx, c)
		}
	}
	return idx
}

func gather(pts []point2, idx []int) []point2 {
	out := make([]point2, len(idx))
	for i, j := range idx {
		out[i] = pts[j]
	}
	return out
}

func inlierSet(h *homography, src, dst []point2) []int {
	var in []int
	for i := range src {
		px, py, ok := h.project(src[i].x, src[i].y)
		if !ok {
			continue
		}
		dx, dy := px-dst[i].x, py-dst[i].y
		if dx*dx+dy*dy <= ransacReproj*ransacReproj {
			in = append(in, i)
		}
	}
	return in
}

// fitHomography solves the direct linear transform for h33 = 1 over all
// given pairs in least squares, with Hartley normalization for
// conditioning. Returns nil for degenerate configurations.
func fitHomography(src, dst []point2) *homography {
	if len(src) < 4 || len(dst) != len(src) {
		return nil
	}

	normSrc, tSrc := normalizePoints(src)
	normDst, tDst := normalizePoints(dst)

	// Accumulate normal equations for the 8 unknowns.
	var ata [8][8]float64
	var atb [8]float64
	addRow := func(row [8]float64, rhs float64) {
		for i := 0; i < 8; i++ {
			if row[i] == 0 {
				continue
			}
			for j := 0; j < 8; j++ {
				ata[i][j] += row[i] * row[j]
			}
			atb[i] += row[i] * rhs
		}
	}
	for i := range normSrc {
		x, y := normSrc[i].x, normSrc[i].y
		u, v := normDst[i].x, normDst[i].y
		addRow([8]float64{x, y, 1, 0, 0, 0, -u * x, -u * y}, u)
		addRow([8]float64{0, 0, 0, x, y, 1, -v * x, -v * y}, v)
	}

	sol, ok := solveLinear8(ata, atb)
	if !ok {
		return nil
	}

	hn := [9]float64{sol[0], sol[1], sol[2], sol[3], sol[4], sol[5], sol[6], sol[7], 1}
	m := mul3(mul3(tDst.inverse(), hn), tSrc.matrix())
	if math.Abs(m[8]) > 1e-12 {
		for i := range m {
			m[i] /= m[8]
		}
	}
	return &homography{m: m}
}

// normTransform is a similarity transform taking raw points to a cloud
// centered at the origin with mean distance sqrt(2).
type normTransform struct {
	scale, cx, cy float64
}

func normalizePoints(pts []point2) ([]point2, normTransform) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.x
		cy += p.y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.x-cx, p.y-cy)
	}
	meanDist /= n

	scale := 1.0
	if meanDist > 1e-12 {
		scale = math.Sqrt2 / meanDist
	}

	out := make([]point2, len(pts))
	for i, p := range pts {
		out[i] = point2{(p.x - cx) * scale, (p.y - cy) * scale}
	}
	return out, normTransform{scale: scale, cx: cx, cy: cy}
}

func (t normTransform) matrix() [9]float64 {
	return [9]float64{
		t.scale, 0, -t.scale * t.cx,
		0, t.scale, -t.scale * t.cy,
		0, 0, 1,
	}
}

func (t normTransform) inverse() [9]float64 {
	return [9]float64{
		1 / t.scale, 0, t.cx,
		0, 1 / t.scale, t.cy,
		0, 0, 1,
	}
}

func mul3(a, b [9]float64) [9]float64 {
	var out [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[r*3+k] * b[k*3+c]
			}
			out[r*3+c] = s
		}
	}
	return out
}

// solveLinear8 runs Gaussian elimination with partial pivoting on an 8x8
// system.
func solveLinear8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	const dim = 8
	for col := 0; col < dim; col++ {
		pivot := col
		for r := col + 1; r < dim; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-10 {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < dim; r++ {
			factor := a[r][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for c := col; c < dim; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	var x [8]float64
	for r := dim - 1; r >= 0; r-- {
		s := b[r]
		for c := r + 1; c < dim; c++ {
			s -= a[r][c] * x[c]
		}
		x[r] = s / a[r][r]
	}
	return x, true
}

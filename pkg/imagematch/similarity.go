package imagematch

import (
	"image"
	"math"

	"github.com/corona10/goimagehash"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// Algorithm selects a whole-image similarity score.
type Algorithm string

const (
	// AlgorithmHistogram correlates hue/saturation distributions. Fast,
	// ignores spatial structure.
	AlgorithmHistogram Algorithm = "histogram"
	// AlgorithmSSIM is a windowed structural similarity estimate.
	AlgorithmSSIM Algorithm = "ssim"
	// AlgorithmORB scores the keypoint descriptor match rate. Tolerant of
	// rotation and scale.
	AlgorithmORB Algorithm = "orb"
	// AlgorithmPHash compares 64-bit perceptual hashes by Hamming distance.
	AlgorithmPHash Algorithm = "phash"
)

// ParseAlgorithm maps an algorithm name to its constant.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmHistogram, AlgorithmSSIM, AlgorithmORB, AlgorithmPHash:
		return Algorithm(s), nil
	default:
		return "", core.ErrInvalidConfig.WithMessagef("unknown similarity algorithm %q", s)
	}
}

// Similarity scores how alike two images are on a 0 to 1 scale, 1 meaning
// identical.
func Similarity(a, b image.Image, alg Algorithm) (float64, error) {
	switch alg {
	case AlgorithmHistogram:
		return histogramSimilarity(a, b), nil
	case AlgorithmSSIM:
		return ssimSimilarity(a, b), nil
	case AlgorithmORB:
		return orbSimilarity(a, b), nil
	case AlgorithmPHash:
		return phashSimilarity(a, b)
	default:
		return 0, core.ErrInvalidConfig.WithMessagef("unknown similarity algorithm %q", alg)
	}
}

// SimilarityFiles loads both images from disk and runs Similarity.
func SimilarityFiles(pathA, pathB string, alg Algorithm) (float64, error) {
	a, err := Load(pathA)
	if err != nil {
		return 0, err
	}
	b, err := Load(pathB)
	if err != nil {
		return 0, err
	}
	return Similarity(a, b, alg)
}

const (
	hueBins = 50
	satBins = 60

	// similarityFeatureCount caps keypoints for descriptor-rate scoring,
	// which needs far fewer than localization does.
	similarityFeatureCount = 500
)

// histogramSimilarity correlates the hue/saturation histograms of both
// images and maps the coefficient from [-1, 1] onto [0, 1].
func histogramSimilarity(a, b image.Image) float64 {
	r := correlation(hsvHistogram(a), hsvHistogram(b))
	return (r + 1) / 2
}

func hsvHistogram(img image.Image) []float64 {
	hist := make([]float64, hueBins*satBins)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			h, s, _ := c.Hsv()
			hb := int(h / 360 * hueBins)
			if hb >= hueBins {
				hb = hueBins - 1
			}
			sb := int(s * satBins)
			if sb >= satBins {
				sb = satBins - 1
			}
			hist[hb*satBins+sb]++
		}
	}
	return hist
}

func correlation(a, b []float64) float64 {
	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var num, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return num / math.Sqrt(varA*varB)
}

const (
	ssimWindow = 11
	ssimSigma  = 1.5
)

var ssimKernel = gaussianKernel(ssimWindow, ssimSigma)

func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// ssimSimilarity resizes both images to their common size and averages the
// windowed structural similarity over the interior.
func ssimSimilarity(a, b image.Image) float64 {
	ga, gb := toGray(a), toGray(b)
	w := min(ga.Rect.Dx(), gb.Rect.Dx())
	h := min(ga.Rect.Dy(), gb.Rect.Dy())
	return ssim(gridFromGray(resizeGray(ga, w, h)), gridFromGray(resizeGray(gb, w, h)))
}

func ssim(a, b *grid) float64 {
	if a.w < ssimWindow || a.h < ssimWindow {
		return 0
	}

	const (
		c1 = (0.01 * 255) * (0.01 * 255)
		c2 = (0.03 * 255) * (0.03 * 255)
	)
	half := ssimWindow / 2

	var total float64
	var count int
	for y := half; y < a.h-half; y++ {
		for x := half; x < a.w-half; x++ {
			var mu1, mu2, s1, s2, s12 float64
			for ky := 0; ky < ssimWindow; ky++ {
				wy := ssimKernel[ky]
				row := (y+ky-half)*a.w + x - half
				for kx := 0; kx < ssimWindow; kx++ {
					wgt := wy * ssimKernel[kx]
					va := a.pix[row+kx]
					vb := b.pix[row+kx]
					mu1 += wgt * va
					mu2 += wgt * vb
					s1 += wgt * va * va
					s2 += wgt * vb * vb
					s12 += wgt * va * vb
				}
			}
			sigma1 := s1 - mu1*mu1
			sigma2 := s2 - mu2*mu2
			sigma12 := s12 - mu1*mu2

			num := (2*mu1*mu2 + c1) * (2*sigma12 + c2)
			den := (mu1*mu1 + mu2*mu2 + c1) * (sigma1 + sigma2 + c2)
			total += num / den
			count++
		}
	}
	if count == 0 {
		return 0
	}
	// The raw index ranges over [-1, 1]; similarity scores are clamped to
	// [0, 1].
	return math.Min(1, math.Max(0, total/float64(count)))
}

// orbSimilarity cross-checks descriptor matches between both images and
// combines the match rate with the match quality.
func orbSimilarity(a, b image.Image) float64 {
	ga := gridFromGray(toGray(a))
	gb := gridFromGray(toGray(b))

	kpA := detectKeypoints(ga, similarityFeatureCount)
	kpB := detectKeypoints(gb, similarityFeatureCount)
	if len(kpA) == 0 || len(kpB) == 0 {
		return 0
	}

	pairs := crossCheckMatch(computeDescriptors(ga, kpA), computeDescriptors(gb, kpB))
	if len(pairs) == 0 {
		return 0
	}

	ratio := float64(len(pairs)) / float64(min(len(kpA), len(kpB)))
	var sum float64
	for _, p := range pairs {
		sum += float64(p.distance)
	}
	avg := sum / float64(len(pairs))

	score := ratio * (1 - avg/256)
	return math.Min(1, math.Max(0, score))
}

// crossCheckMatch keeps a pair only when each descriptor is the other's
// nearest neighbor.
func crossCheckMatch(a, b []descriptor) []featurePair {
	bestAB := nearestIndices(a, b)
	bestBA := nearestIndices(b, a)

	var out []featurePair
	for qi, ti := range bestAB {
		if ti >= 0 && bestBA[ti] == qi {
			out = append(out, featurePair{query: qi, train: ti, distance: hamming(a[qi], b[ti])})
		}
	}
	return out
}

func nearestIndices(from, to []descriptor) []int {
	out := make([]int, len(from))
	for i := range from {
		best, bestIdx := 257, -1
		for j := range to {
			if d := hamming(from[i], to[j]); d < best {
				best, bestIdx = d, j
			}
		}
		out[i] = bestIdx
	}
	return out
}

// phashSimilarity compares 64-bit perceptual hashes. Identical images hash
// identically, so self similarity is exactly 1.
func phashSimilarity(a, b image.Image) (float64, error) {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return 0, core.ErrImageDecode.WithMessage("perceptual hash failed").WithCause(err)
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return 0, core.ErrImageDecode.WithMessage("perceptual hash failed").WithCause(err)
	}
	dist, err := ha.Distance(hb)
	if err != nil {
		return 0, core.ErrImageDecode.WithMessage("perceptual hash failed").WithCause(err)
	}
	return 1 - float64(dist)/64, nil
}

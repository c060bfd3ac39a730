package imagematch

import (
	"math"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// flatEps guards against division by a near-zero variance. Windows and
// templates with no contrast have an undefined correlation and are skipped.
const flatEps = 1e-6

// matchTemplate slides the template over the frame at native scale and
// reports every placement whose normalized cross correlation clears the
// threshold.
func matchTemplate(frame, tpl *grid, threshold float64) []Match {
	return correlate(frame, tpl, threshold, "template_matching")
}

// correlate computes the zero-mean normalized cross correlation of the
// template against every placement in the frame. Window statistics come
// from summed-area tables so only the cross term is computed per placement.
func correlate(frame, tpl *grid, threshold float64, method string) []Match {
	if tpl.w == 0 || tpl.h == 0 || tpl.w > frame.w || tpl.h > frame.h {
		return nil
	}

	n := float64(tpl.w * tpl.h)
	var tSum float64
	for _, v := range tpl.pix {
		tSum += v
	}
	tMean := tSum / n

	tZero := make([]float64, len(tpl.pix))
	var tVar float64
	for i, v := range tpl.pix {
		d := v - tMean
		tZero[i] = d
		tVar += d * d
	}
	if tVar < flatEps {
		return nil
	}
	tNorm := math.Sqrt(tVar)

	ii := newIntegral(frame)
	var out []Match
	for y := 0; y+tpl.h <= frame.h; y++ {
		for x := 0; x+tpl.w <= frame.w; x++ {
			wSum, wSq := ii.window(x, y, tpl.w, tpl.h)
			wVar := wSq - wSum*wSum/n
			if wVar < flatEps {
				continue
			}

			// Summing zero-mean template against the raw window gives the
			// covariance numerator, since the template sums to zero.
			var cross float64
			for ty := 0; ty < tpl.h; ty++ {
				row := (y+ty)*frame.w + x
				trow := ty * tpl.w
				for tx := 0; tx < tpl.w; tx++ {
					cross += tZero[trow+tx] * frame.pix[row+tx]
				}
			}

			score := cross / (tNorm * math.Sqrt(wVar))
			if score >= threshold {
				out = append(out, Match{
					Confidence: score,
					Bounds: core.Bounds{
						Left:   x,
						Top:    y,
						Right:  x + tpl.w,
						Bottom: y + tpl.h,
					},
					Method: method,
				})
			}
		}
	}
	return out
}

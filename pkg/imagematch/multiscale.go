package imagematch

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/sync/errgroup"
)

const (
	scaleMin   = 0.5
	scaleMax   = 2.0
	scaleSteps = 16
)

// matchMultiScale repeats the correlation with the template resized across
// a fixed range of scale factors. Scales where the resized template no
// longer fits inside the frame are skipped. Candidate boxes carry the
// scaled template's footprint.
func matchMultiScale(frame *grid, tpl *image.Gray, threshold float64) []Match {
	tw, th := tpl.Rect.Dx(), tpl.Rect.Dy()

	results := make([][]Match, scaleSteps)
	var g errgroup.Group
	for i := 0; i < scaleSteps; i++ {
		i := i
		g.Go(func() error {
			scale := scaleMin + (scaleMax-scaleMin)*float64(i)/float64(scaleSteps-1)
			w := int(math.Round(float64(tw) * scale))
			h := int(math.Round(float64(th) * scale))
			if w < 1 || h < 1 || w > frame.w || h > frame.h {
				return nil
			}
			scaled := gridFromGray(resizeGray(tpl, w, h))
			method := fmt.Sprintf("multi_scale_%.2fx", scale)
			results[i] = correlate(frame, scaled, threshold, method)
			return nil
		})
	}
	_ = g.Wait()

	var out []Match
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

package imagematch

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

// Decode parses PNG or JPEG bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.ErrImageDecode.WithCause(err)
	}
	return img, nil
}

// Load reads and decodes an image file.
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ErrImageDecode.
			WithMessagef("cannot read image %q", path).
			WithCause(err)
	}
	return Decode(data)
}

// toGray converts any image to an 8-bit grayscale raster anchored at the
// origin.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(dst, image.Point{}, img, b, xdraw.Src, nil)
	return dst
}

// resizeGray scales a grayscale image to the given dimensions with bilinear
// interpolation.
func resizeGray(src *image.Gray, w, h int) *image.Gray {
	if src.Rect.Dx() == w && src.Rect.Dy() == h {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	return dst
}

// grid is a float64 grayscale raster used by the matching math.
type grid struct {
	w, h int
	pix  []float64
}

func gridFromGray(g *image.Gray) *grid {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := &grid{w: w, h: h, pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			out.pix[y*w+x] = float64(v)
		}
	}
	return out
}

func (g *grid) at(x, y int) float64 {
	return g.pix[y*g.w+x]
}

// integral holds summed-area tables for O(1) window sums.
type integral struct {
	w, h    int
	sum, sq []float64
}

func newIntegral(g *grid) *integral {
	w, h := g.w, g.h
	ii := &integral{
		w:   w,
		h:   h,
		sum: make([]float64, (w+1)*(h+1)),
		sq:  make([]float64, (w+1)*(h+1)),
	}
	for y := 0; y < h; y++ {
		var rowSum, rowSq float64
		for x := 0; x < w; x++ {
			v := g.pix[y*g.w+x]
			rowSum += v
			rowSq += v * v
			idx := (y+1)*(w+1) + x + 1
			ii.sum[idx] = ii.sum[idx-(w+1)] + rowSum
			ii.sq[idx] = ii.sq[idx-(w+1)] + rowSq
		}
	}
	return ii
}

// window returns the sum and sum of squares of the w by h rectangle whose top
// left corner is (x, y).
func (ii *integral) window(x, y, w, h int) (float64, float64) {
	stride := ii.w + 1
	a := y*stride + x
	b := y*stride + x + w
	c := (y+h)*stride + x
	d := (y+h)*stride + x + w
	return ii.sum[d] - ii.sum[b] - ii.sum[c] + ii.sum[a],
		ii.sq[d] - ii.sq[b] - ii.sq[c] + ii.sq[a]
}

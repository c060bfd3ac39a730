package imagematch

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

func TestDecode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 12, 7))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 7 {
		t.Errorf("Decode() bounds = %v, want 12x7", img.Bounds())
	}
}

func TestDecode_InvalidData(t *testing.T) {
	_, err := Decode([]byte("not an image at all"))
	if err == nil {
		t.Fatal("Decode() expected error for garbage input")
	}
	if !errors.Is(err, core.ErrImageDecode) {
		t.Errorf("Decode() error = %v, want ErrImageDecode", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.png")
	src := image.NewGray(image.Rect(0, 0, 9, 5))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if img.Bounds().Dx() != 9 || img.Bounds().Dy() != 5 {
		t.Errorf("Load() bounds = %v, want 9x5", img.Bounds())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !errors.Is(err, core.ErrImageDecode) {
		t.Errorf("Load() error = %v, want ErrImageDecode", err)
	}
}

func TestToGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(3, 2, 11, 8))
	for y := src.Rect.Min.Y; y < src.Rect.Max.Y; y++ {
		for x := src.Rect.Min.X; x < src.Rect.Max.X; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	g := toGray(src)
	if g.Rect != image.Rect(0, 0, 8, 6) {
		t.Errorf("toGray() bounds = %v, want origin anchored 8x6", g.Rect)
	}
	if got := g.GrayAt(0, 0).Y; got != 255 {
		t.Errorf("toGray() white pixel = %d, want 255", got)
	}
	if got := toGray(image.NewRGBA(image.Rect(0, 0, 4, 4))).GrayAt(2, 2).Y; got != 0 {
		t.Errorf("toGray() black pixel = %d, want 0", got)
	}
}

func TestToGray_Passthrough(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 6, 6))
	if toGray(g) != g {
		t.Error("toGray() should return origin anchored gray images unchanged")
	}
}

func TestResizeGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 100
	}

	dst := resizeGray(src, 4, 4)
	if dst.Rect.Dx() != 4 || dst.Rect.Dy() != 4 {
		t.Fatalf("resizeGray() bounds = %v, want 4x4", dst.Rect)
	}
	for i, v := range dst.Pix {
		if v != 100 {
			t.Fatalf("resizeGray() pix[%d] = %d, want constant 100", i, v)
		}
	}
}

func TestResizeGray_SameDims(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 9))
	if resizeGray(src, 5, 9) != src {
		t.Error("resizeGray() should return same-size images unchanged")
	}
}

func TestGridFromGray(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(g.Pix, []uint8{1, 2, 3, 4, 5, 6})

	grd := gridFromGray(g)
	if grd.w != 3 || grd.h != 2 {
		t.Fatalf("gridFromGray() dims = %dx%d, want 3x2", grd.w, grd.h)
	}
	if grd.at(2, 0) != 3 || grd.at(0, 1) != 4 {
		t.Errorf("gridFromGray() values = %v, want row major 1..6", grd.pix)
	}
}

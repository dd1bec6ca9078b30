package textseg

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

func TestMask(t *testing.T) {
	words := []Word{
		{Box: image.Rect(1, 0, 3, 2), Confidence: 0.9},
		{Box: image.Rect(0, 2, 4, 3), Confidence: 0.2},
	}
	got := Mask(4, 3, words, 0.5)

	want := []int{
		0, 1, 1, 0,
		0, 1, 1, 0,
		0, 0, 0, 0,
	}
	if diff := cmp.Diff(want, got.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestMask_ClipsBoxes(t *testing.T) {
	words := []Word{{Box: image.Rect(-5, -5, 50, 1), Confidence: 1}}
	got := Mask(3, 2, words, 0)

	want := []int{1, 1, 1, 0, 0, 0}
	if diff := cmp.Diff(want, got.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("invalid label map: %v", err)
	}
}

func TestMask_ColorizesToLegend(t *testing.T) {
	m := Mask(2, 1, []Word{{Box: image.Rect(0, 0, 1, 1), Confidence: 1}}, 0.5)
	res, err := segment.Colorize(m, Classes)
	if err != nil {
		t.Fatalf("Colorize failed: %v", err)
	}
	want := segment.Legend{
		"background": segment.RGB(0, 0, 0),
		"text":       segment.RGB(255, 215, 0),
	}
	if diff := cmp.Diff(want, res.Legend); diff != "" {
		t.Errorf("legend mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", 0.5); err == nil {
		t.Error("empty language should be rejected")
	}
	if _, err := New("eng", 1.5); err == nil {
		t.Error("confidence above 1 should be rejected")
	}
}

func TestRegistered(t *testing.T) {
	if _, ok := segment.Lookup(Name); !ok {
		t.Fatal("text provider not registered")
	}
}

// textRaster renders text with basicfont, scaled up so Tesseract can read it.
func textRaster(t *testing.T, text string, scale int) *raster.Raster {
	t.Helper()

	w, h := len(text)*7+40, 40
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(20), Y: fixed.I(25)},
	}
	d.DrawString(text)

	big := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			big.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return raster.FromImage(big)
}

func TestSegment_RenderedText(t *testing.T) {
	p, err := New("eng", 0.3)
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}

	in := textRaster(t, "HELLO WORLD", 4)
	res, err := segment.Run(context.Background(), in, p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Raster.Width != in.Width || res.Raster.Height != in.Height {
		t.Errorf("size: got %dx%d, want %dx%d", res.Raster.Width, res.Raster.Height, in.Width, in.Height)
	}
	if _, ok := res.Legend["background"]; !ok {
		t.Errorf("legend should contain background: %v", res.Legend)
	}
}

package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// halfResult builds a w x h result whose left half is red "a" and right half
// is blue "b".
func halfResult(t *testing.T, w, h int) *segment.Result {
	t.Helper()
	m := &segment.LabelMap{Width: w, Height: h, Labels: make([]int, w*h)}
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			m.Labels[y*w+x] = 1
		}
	}
	res, err := segment.Colorize(m, segment.ClassTable{
		{Name: "a", Color: segment.RGB(255, 0, 0)},
		{Name: "b", Color: segment.RGB(0, 0, 255)},
	})
	if err != nil {
		t.Fatalf("Colorize failed: %v", err)
	}
	return res
}

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestOverlay_SameSize(t *testing.T) {
	res := halfResult(t, 4, 2)

	out, err := Overlay(whiteImage(4, 2), res, 0.5)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Errorf("bounds: got %v", out.Bounds())
	}

	r, g, b, _ := out.At(0, 0).RGBA()
	if r>>8 != 255 || g>>8 < 120 || g>>8 > 135 || b>>8 < 120 || b>>8 > 135 {
		t.Errorf("left pixel should be pink, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestOverlay_ResizesMask(t *testing.T) {
	res := halfResult(t, 2, 1)

	out, err := Overlay(whiteImage(10, 6), res, 1)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if out.Bounds().Dx() != 10 || out.Bounds().Dy() != 6 {
		t.Fatalf("overlay should keep base bounds, got %v", out.Bounds())
	}

	want := map[image.Point]color.RGBA{
		{0, 0}: {255, 0, 0, 255},
		{9, 5}: {0, 0, 255, 255},
	}
	for p, c := range want {
		r, g, b, a := out.At(p.X, p.Y).RGBA()
		got := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
		if got != c {
			t.Errorf("%v: got %v, want %v", p, got, c)
		}
	}
}

func TestOverlay_NoResult(t *testing.T) {
	if _, err := Overlay(whiteImage(1, 1), nil, 0.5); !errors.Is(err, ErrNoResult) {
		t.Errorf("got %v, want ErrNoResult", err)
	}
}

func TestLegendImage_GrowsWithEntries(t *testing.T) {
	one, err := LegendImage(segment.Legend{"background": segment.RGB(0, 0, 0)})
	if err != nil {
		t.Fatalf("LegendImage failed: %v", err)
	}
	three, err := LegendImage(segment.Legend{
		"background": segment.RGB(0, 0, 0),
		"person":     segment.RGB(192, 128, 128),
		"sofa":       segment.RGB(0, 192, 0),
	})
	if err != nil {
		t.Fatalf("LegendImage failed: %v", err)
	}

	if three.Bounds().Dy() <= one.Bounds().Dy() {
		t.Errorf("legend height should grow: %d vs %d", three.Bounds().Dy(), one.Bounds().Dy())
	}

	// First swatch, inside its border.
	r, g, b, _ := three.At(padding+SwatchSize/2, padding+SwatchSize/2).RGBA()
	if r>>8 != 0 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("background swatch should be black, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestLegendImage_Empty(t *testing.T) {
	if _, err := LegendImage(nil); !errors.Is(err, ErrNoResult) {
		t.Errorf("got %v, want ErrNoResult", err)
	}
}

func TestCoverage(t *testing.T) {
	res := halfResult(t, 4, 1)
	res.Raster.Pix[res.Raster.Offset(3, 0)+1] = 7 // no longer a legend color

	got, err := Coverage(res)
	if err != nil {
		t.Fatalf("Coverage failed: %v", err)
	}

	want := &CoverageReport{
		Classes: []ClassCoverage{
			{Label: "a", Color: segment.RGB(255, 0, 0), Hex: "#ff0000", HSL: HSLColor{H: 0, S: 100, L: 50}, Pixels: 2, Percentage: 50},
			{Label: "b", Color: segment.RGB(0, 0, 255), Hex: "#0000ff", HSL: HSLColor{H: 240, S: 100, L: 50}, Pixels: 1, Percentage: 25},
		},
		Unlabeled:   1,
		TotalPixels: 4,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
}

func TestCoverage_TiesOrderedByLabel(t *testing.T) {
	res := halfResult(t, 2, 2)
	got, err := Coverage(res)
	if err != nil {
		t.Fatalf("Coverage failed: %v", err)
	}
	if len(got.Classes) != 2 || got.Classes[0].Label != "a" {
		t.Errorf("unexpected order: %+v", got.Classes)
	}
}

func TestMask(t *testing.T) {
	if _, err := Mask(&segment.Result{}); !errors.Is(err, ErrNoResult) {
		t.Errorf("got %v, want ErrNoResult", err)
	}
	img, err := Mask(&segment.Result{Raster: &raster.Raster{Width: 1, Height: 1, Channels: raster.RGBA, Pix: make([]uint8, 4)}})
	if err != nil || img.Bounds().Dx() != 1 {
		t.Errorf("Mask: %v %v", img, err)
	}
}

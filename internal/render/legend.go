package render

import (
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// Legend layout in pixels.
const (
	SwatchSize = 20
	rowGap     = 4
	padding    = 8
	labelGap   = 8
)

// LegendImage draws legend as a column of swatch and label rows on a white
// background.
func LegendImage(legend segment.Legend) (image.Image, error) {
	if len(legend) == 0 {
		return nil, ErrNoResult
	}
	entries := legend.Entries()

	face := basicfont.Face7x13
	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	textWidth := 0.0
	for _, e := range entries {
		if w, _ := measure.MeasureString(e.Label); w > textWidth {
			textWidth = w
		}
	}

	width := padding*2 + SwatchSize + labelGap + int(textWidth+0.5)
	height := padding*2 + len(entries)*SwatchSize + (len(entries)-1)*rowGap

	dc := gg.NewContext(width, height)
	dc.SetFontFace(face)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, e := range entries {
		y := float64(padding + i*(SwatchSize+rowGap))

		dc.DrawRectangle(padding, y, SwatchSize, SwatchSize)
		dc.SetRGB255(int(e.Color.R), int(e.Color.G), int(e.Color.B))
		dc.FillPreserve()
		dc.SetRGB(0.4, 0.4, 0.4)
		dc.SetLineWidth(1)
		dc.Stroke()

		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(e.Label, padding+SwatchSize+labelGap, y+SwatchSize/2, 0, 0.5)
	}

	return dc.Image(), nil
}

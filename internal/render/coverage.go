package render

import (
	"sort"

	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// HSLColor is a color in HSL space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees
	S int `json:"s"` // Saturation: 0-100 percent
	L int `json:"l"` // Lightness: 0-100 percent
}

// ClassCoverage is the share of the image covered by one class.
type ClassCoverage struct {
	Label      string        `json:"label"`
	Color      segment.Color `json:"color"`
	Hex        string        `json:"hex"`
	HSL        HSLColor      `json:"hsl"`
	Pixels     int           `json:"pixels"`
	Percentage float64       `json:"percentage"` // 0-100
}

// CoverageReport lists class coverage sorted by percentage, largest first.
type CoverageReport struct {
	Classes []ClassCoverage `json:"classes"`

	// Unlabeled counts pixels whose color matches no legend entry.
	Unlabeled int `json:"unlabeled,omitempty"`

	TotalPixels int `json:"total_pixels"`
}

// Coverage measures how much of the result each legend class covers.
// Classes are matched by color; ties in percentage are ordered by label.
func Coverage(res *segment.Result) (*CoverageReport, error) {
	if res == nil || res.Raster == nil {
		return nil, ErrNoResult
	}
	r := res.Raster
	if err := r.Validate(); err != nil {
		return nil, err
	}

	byColor := make(map[segment.Color]string, len(res.Legend))
	for _, label := range res.Legend.Labels() {
		c := res.Legend[label]
		if _, dup := byColor[c]; !dup {
			byColor[c] = label
		}
	}

	counts := make(map[string]int, len(res.Legend))
	unlabeled := 0
	for i := 0; i < len(r.Pix); i += r.Channels {
		var c segment.Color
		if r.Channels >= 3 {
			c = segment.RGB(r.Pix[i], r.Pix[i+1], r.Pix[i+2])
		} else {
			c = segment.RGB(r.Pix[i], r.Pix[i], r.Pix[i])
		}
		label, ok := byColor[c]
		if !ok {
			unlabeled++
			continue
		}
		counts[label]++
	}

	total := r.Width * r.Height
	report := &CoverageReport{
		Classes:     make([]ClassCoverage, 0, len(counts)),
		Unlabeled:   unlabeled,
		TotalPixels: total,
	}
	for label, n := range counts {
		c := res.Legend[label]
		report.Classes = append(report.Classes, ClassCoverage{
			Label:      label,
			Color:      c,
			Hex:        c.Hex(),
			HSL:        toHSL(c),
			Pixels:     n,
			Percentage: float64(n) / float64(total) * 100,
		})
	}

	sort.Slice(report.Classes, func(i, j int) bool {
		a, b := report.Classes[i], report.Classes[j]
		if a.Pixels != b.Pixels {
			return a.Pixels > b.Pixels
		}
		return a.Label < b.Label
	})

	return report, nil
}

func toHSL(c segment.Color) HSLColor {
	h, s, l := c.Colorful().Hsl()
	return HSLColor{H: int(h), S: int(s*100 + 0.5), L: int(l*100 + 0.5)}
}

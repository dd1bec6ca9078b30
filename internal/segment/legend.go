package segment

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGB triple. It encodes to JSON as [r,g,b].
type Color struct {
	R, G, B uint8
}

// RGB builds a Color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Colorful converts to a go-colorful color for perceptual operations.
func (c Color) Colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// FromColorful converts back, clamping out-of-gamut values.
func FromColorful(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return Color{R: r, G: g, B: b}
}

// Hex returns "#rrggbb".
func (c Color) Hex() string {
	return c.Colorful().Hex()
}

// MarshalJSON encodes the color as a three element array.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c.R), int(c.G), int(c.B)})
}

// UnmarshalJSON accepts a three element array with components in [0,255].
func (c *Color) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	if len(v) != 3 {
		return fmt.Errorf("color: want 3 components, got %d", len(v))
	}
	for i, x := range v {
		if x < 0 || x > 255 {
			return fmt.Errorf("color: component %d value %d outside [0,255]", i, x)
		}
	}
	*c = Color{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2])}
	return nil
}

// Legend maps a class label to its display color.
type Legend map[string]Color

// LegendEntry is one row of a rendered legend.
type LegendEntry struct {
	Label string `json:"label"`
	Color Color  `json:"color"`
	Hex   string `json:"hex"`
}

// Labels returns the labels in lexical order.
func (l Legend) Labels() []string {
	labels := make([]string, 0, len(l))
	for label := range l {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Entries returns the legend rows in Labels order.
func (l Legend) Entries() []LegendEntry {
	entries := make([]LegendEntry, 0, len(l))
	for _, label := range l.Labels() {
		c := l[label]
		entries = append(entries, LegendEntry{Label: label, Color: c, Hex: c.Hex()})
	}
	return entries
}

// Clone returns a copy.
func (l Legend) Clone() Legend {
	c := make(Legend, len(l))
	for k, v := range l {
		c[k] = v
	}
	return c
}

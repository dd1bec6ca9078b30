package segment

import (
	"fmt"

	"github.com/ironsheep/segment-tools-mcp/internal/raster"
)

// Class is one entry of a model's label set.
type Class struct {
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// ClassTable maps class ids (slice indices) to classes.
type ClassTable []Class

// Names returns the class names in id order.
func (t ClassTable) Names() []string {
	names := make([]string, len(t))
	for i, c := range t {
		names[i] = c.Name
	}
	return names
}

// LabelMap holds one class id per pixel, row-major.
type LabelMap struct {
	Width  int
	Height int
	Labels []int
}

// Validate checks the shape of the map.
func (m *LabelMap) Validate() error {
	if m == nil {
		return fmt.Errorf("nil label map")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("label map dimensions %dx%d must be positive", m.Width, m.Height)
	}
	if len(m.Labels) != m.Width*m.Height {
		return fmt.Errorf("label map holds %d ids, want %d", len(m.Labels), m.Width*m.Height)
	}
	return nil
}

// Colorize expands a label map into an opaque RGBA raster using the class
// colors, and builds a legend containing only the classes that occur.
func Colorize(m *LabelMap, table ClassTable) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	out, err := raster.New(m.Width, m.Height, raster.RGBA)
	if err != nil {
		return nil, err
	}

	seen := make([]bool, len(table))
	for i, id := range m.Labels {
		if id < 0 || id >= len(table) {
			return nil, fmt.Errorf("pixel %d has class id %d outside [0,%d)", i, id, len(table))
		}
		seen[id] = true
		c := table[id].Color
		o := i * raster.RGBA
		out.Pix[o] = c.R
		out.Pix[o+1] = c.G
		out.Pix[o+2] = c.B
		out.Pix[o+3] = 0xff
	}

	legend := make(Legend)
	for id, ok := range seen {
		if ok {
			legend[table[id].Name] = table[id].Color
		}
	}
	return &Result{Raster: out, Legend: legend}, nil
}

package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// RGBA is the channel count of a canvas-style raster.
const RGBA = 4

// ErrInvalid is returned by Validate for malformed rasters.
var ErrInvalid = errors.New("raster: invalid raster")

// Raster is a width×height grid of pixels stored as a flat, row-major,
// channel-interleaved byte sequence.
//
// A 4-channel raster holds non-premultiplied R, G, B, A samples, the layout of
// a browser ImageData buffer and of Go's *image.NRGBA.
type Raster struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Channels int     `json:"channels"`
	Pix      []uint8 `json:"-"`
}

// New allocates a zeroed raster.
func New(width, height, channels int) (*Raster, error) {
	r := &Raster{Width: width, Height: height, Channels: channels}
	if width <= 0 || height <= 0 || channels <= 0 {
		return nil, r.Validate()
	}
	r.Pix = make([]uint8, width*height*channels)
	return r, nil
}

// Validate checks that the dimensions are positive and that Pix holds exactly
// Width*Height*Channels samples. No implicit padding is accepted.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrInvalid)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalid, r.Width, r.Height)
	}
	if r.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d must be positive", ErrInvalid, r.Channels)
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d (%dx%dx%d)",
			ErrInvalid, len(r.Pix), want, r.Width, r.Height, r.Channels)
	}
	return nil
}

// Len is the expected buffer length.
func (r *Raster) Len() int {
	return r.Width * r.Height * r.Channels
}

// Offset returns the index of the first channel of pixel (x, y).
func (r *Raster) Offset(x, y int) int {
	return (y*r.Width + x) * r.Channels
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	c := *r
	c.Pix = append([]uint8(nil), r.Pix...)
	return &c
}

// FromImage converts any image into a 4-channel raster anchored at (0,0).
func FromImage(img image.Image) *Raster {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return &Raster{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: RGBA,
		Pix:      nrgba.Pix,
	}
}

// Image wraps a 4-channel raster as an *image.NRGBA sharing its buffer.
func (r *Raster) Image() (*image.NRGBA, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Channels != RGBA {
		return nil, fmt.Errorf("%w: %d channels cannot be viewed as RGBA", ErrInvalid, r.Channels)
	}
	return &image.NRGBA{
		Pix:    r.Pix,
		Stride: r.Width * RGBA,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}, nil
}

// Package render turns segmentation results into images and reports for an
// MCP client.
//
// # Overlay
//
// Overlay blends the colored segmentation over the original image. The mask
// is resized with nearest-neighbor sampling when its size differs from the
// base, so class colors are never mixed at region borders. The overlay
// always has the bounds of the base image.
//
// # Legend
//
// LegendImage draws one row per class: a 20x20 color swatch followed by the
// class label. Rows are ordered by label.
//
// # Coverage
//
// Coverage counts the pixels of each class and reports the percentage of the
// image it covers, largest first. Colors are reported as hex and HSL.
package render

import (
	"errors"
	"image"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// ErrNoResult is returned when there is nothing to render.
var ErrNoResult = errors.New("render: no segmentation result")

// Mask returns the segmentation raster of res as an image.
func Mask(res *segment.Result) (image.Image, error) {
	if res == nil || res.Raster == nil {
		return nil, ErrNoResult
	}
	return res.Raster.Image()
}

// Overlay blends the segmentation of res over base. opacity is the weight of
// the segmentation colors, clamped to [0, 1].
func Overlay(base image.Image, res *segment.Result, opacity float64) (image.Image, error) {
	mask, err := Mask(res)
	if err != nil {
		return nil, err
	}

	// Blend walks pixels from the origin, so rebase the source.
	bg := imaging.Clone(base)
	w, h := bg.Bounds().Dx(), bg.Bounds().Dy()

	var fg image.Image = mask
	if mask.Bounds().Dx() != w || mask.Bounds().Dy() != h {
		fg = transform.Resize(mask, w, h, transform.NearestNeighbor)
	}

	return blend.Opacity(bg, fg, opacity), nil
}

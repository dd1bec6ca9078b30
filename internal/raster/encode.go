package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Encoded is an image serialized for transport to an MCP client.
type Encoded struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG serializes img as a base64 PNG.
func EncodePNG(img image.Image) (*Encoded, error) {
	data, err := PNGBytes(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Encoded{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}

// PNGBytes encodes img as PNG.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit scales r down so neither side exceeds maxDim, preserving aspect ratio.
// Rasters already within bounds are returned unchanged.
func Fit(r *Raster, maxDim int) (*Raster, error) {
	img, err := r.Image()
	if err != nil {
		return nil, err
	}
	if maxDim <= 0 || (r.Width <= maxDim && r.Height <= maxDim) {
		return r, nil
	}
	return FromImage(imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)), nil
}

// Package textseg segments images into text and background using Tesseract.
//
// Word-level bounding boxes are read through gosseract (RIL_WORD). Every
// pixel inside a box whose confidence reaches the configured threshold is
// labeled "text"; everything else is "background".
//
// # Prerequisites
//
// Tesseract and the language data for the configured language must be
// installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Building the provider fails when the language data cannot be found, so a
// missing installation is reported when the model is loaded rather than on
// the first segmentation.
package textseg

import (
	"context"
	"image"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// Name is the registry name of the provider.
const Name = "text"

// Class ids of the produced label map.
const (
	Background = 0
	Text       = 1
)

// Classes is the label table of the provider.
var Classes = segment.ClassTable{
	Background: {Name: "background", Color: segment.RGB(0, 0, 0)},
	Text:       {Name: "text", Color: segment.RGB(255, 215, 0)},
}

func init() {
	segment.Register(Name, "text regions found by Tesseract word detection",
		func(ctx context.Context, cfg config.Config) (segment.Provider, error) {
			return New(cfg.TextLanguage, cfg.TextMinConfidence)
		})
}

// Word is a detected word box with its confidence in [0, 1].
type Word struct {
	Box        image.Rectangle
	Confidence float64
}

// Provider marks Tesseract word boxes as text.
type Provider struct {
	language      string
	minConfidence float64
}

// New returns a provider for the given Tesseract language. Words with a
// confidence below minConfidence are ignored.
func New(language string, minConfidence float64) (*Provider, error) {
	if language == "" {
		return nil, errors.New("textseg: language is required")
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, errors.Errorf("textseg: confidence %v outside [0,1]", minConfidence)
	}

	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, errors.Wrap(err, "textseg: tesseract not available")
	}
	found := false
	for _, l := range langs {
		if l == language {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Errorf("textseg: tesseract language %q is not installed", language)
	}

	return &Provider{language: language, minConfidence: minConfidence}, nil
}

// Name implements segment.Named.
func (p *Provider) Name() string { return Name }

// Segment implements segment.Provider.
func (p *Provider) Segment(ctx context.Context, in *raster.Raster) (*segment.Result, error) {
	img, err := in.Image()
	if err != nil {
		return nil, err
	}
	data, err := raster.PNGBytes(img)
	if err != nil {
		return nil, err
	}

	words, err := p.detect(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return segment.Colorize(Mask(in.Width, in.Height, words, p.minConfidence), Classes)
}

func (p *Provider) detect(png []byte) ([]Word, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.language); err != nil {
		return nil, errors.Wrap(err, "textseg: set language")
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, errors.Wrap(err, "textseg: set image")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, errors.Wrap(err, "textseg: word boxes")
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{Box: box.Box, Confidence: box.Confidence / 100.0})
	}
	return words, nil
}

// Mask builds a width x height label map with the qualifying word boxes set
// to Text. Boxes are clipped to the image.
func Mask(width, height int, words []Word, minConfidence float64) *segment.LabelMap {
	m := &segment.LabelMap{
		Width:  width,
		Height: height,
		Labels: make([]int, width*height),
	}
	bounds := image.Rect(0, 0, width, height)
	for _, w := range words {
		if w.Confidence < minConfidence {
			continue
		}
		box := w.Box.Intersect(bounds)
		for y := box.Min.Y; y < box.Max.Y; y++ {
			row := m.Labels[y*width : (y+1)*width]
			for x := box.Min.X; x < box.Max.X; x++ {
				row[x] = Text
			}
		}
	}
	return m
}

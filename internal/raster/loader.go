package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"net/http"
	"os"
	"strings"

	"github.com/die-net/lrucache"
	"github.com/disintegration/imaging"
)

// ErrNotAnImage is returned when the content sniffs as something other than
// an image.
var ErrNotAnImage = errors.New("raster: content is not an image")

// Loader reads image files through a size-bounded cache of encoded bytes.
//
// Only the encoded file contents are cached: decoding is repeated on every
// Load so each caller owns a fresh raster it may hand to a provider or mutate
// freely. The cache is keyed by the exact path string.
//
// Loader is safe for concurrent use.
type Loader struct {
	cache *lrucache.LruCache
}

// NewLoader creates a loader holding at most maxBytes of encoded images.
// A non-positive maxBytes disables caching.
func NewLoader(maxBytes int64) *Loader {
	l := &Loader{}
	if maxBytes > 0 {
		l.cache = lrucache.New(maxBytes, 0)
	}
	return l
}

// ReadFile returns the encoded bytes of path, from cache when possible.
//
// Parameters:
//   - path: Path to the file. The cache is keyed by this exact string, so a
//     relative and an absolute path to the same file are cached separately.
//
// Returns:
//   - []byte: The file contents. Callers must not modify the slice; it may be
//     shared with the cache.
//   - error: Non-nil if the file cannot be read.
func (l *Loader) ReadFile(path string) ([]byte, error) {
	if l.cache != nil {
		if data, ok := l.cache.Get(path); ok {
			return data, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	if l.cache != nil {
		l.cache.Set(path, data)
	}
	return data, nil
}

// Load reads and decodes the image at path.
//
// Parameters:
//   - path: Path to a PNG, JPEG or GIF file.
//
// Returns:
//   - *Raster: A fresh 4-channel raster owned by the caller, with EXIF
//     orientation applied.
//   - error: Non-nil if the file cannot be read or decoded.
//
// # Errors
//
//   - Returns an error wrapping the os error if the file cannot be read
//   - Returns an error wrapping ErrNotAnImage if the content does not sniff
//     as an image (text, PDF, archives)
//   - Returns an error if the image data is corrupt or the format has no
//     registered decoder
func (l *Loader) Load(path string) (*Raster, error) {
	data, err := l.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// LoadImage is Load returning the decoded image.
func (l *Loader) LoadImage(path string) (image.Image, error) {
	data, err := l.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// Evict drops path from the cache.
func (l *Loader) Evict(path string) {
	if l.cache != nil {
		l.cache.Delete(path)
	}
}

// Sniff reports the detected MIME type of data and whether it is an image.
func Sniff(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	return mime, strings.HasPrefix(mime, "image/")
}

// DecodeImage rejects non-image content and decodes the rest, applying EXIF
// orientation so the pixels match what a browser would display.
func DecodeImage(data []byte) (image.Image, error) {
	if mime, ok := Sniff(data); !ok {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, mime)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Decode turns encoded image bytes into a fully decoded 4-channel raster.
func Decode(data []byte) (*Raster, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// Info describes an image file.
type Info struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder name reported by image.DecodeConfig
	// ("png", "jpeg", "gif").
	Format string `json:"format"`

	// MimeType is the sniffed content type.
	MimeType string `json:"mime_type"`

	// FileSizeBytes is the size of the encoded file.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadInfo returns metadata about the image at path without a full decode.
//
// Parameters:
//   - path: Path to the image file.
//
// Returns:
//   - *Info: Dimensions, decoder format, sniffed MIME type and file size.
//   - error: Non-nil if the file cannot be read or is not an image.
//
// Only the image header is parsed, so LoadInfo is cheap even for large
// files. The encoded bytes are cached for a later Load of the same path.
//
// # Errors
//
//   - Returns an error if the file does not exist or cannot be read
//   - Returns an error wrapping ErrNotAnImage for non-image content
//   - Returns an error if the header cannot be parsed
func (l *Loader) LoadInfo(path string) (*Info, error) {
	data, err := l.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mime, ok := Sniff(data)
	if !ok {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, mime)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	return &Info{
		Width:         cfg.Width,
		Height:        cfg.Height,
		Format:        format,
		MimeType:      mime,
		FileSizeBytes: int64(len(data)),
	}, nil
}

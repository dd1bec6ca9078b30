// Package raster provides the pixel container passed between image sources,
// segmentation providers and renderers.
//
// A Raster is a flat, row-major, channel-interleaved byte buffer with explicit
// width, height and channel count. Four-channel rasters use non-premultiplied
// RGBA samples, the same layout as a canvas ImageData buffer, so a Raster can
// be viewed as an *image.NRGBA without copying.
//
// # Coordinate System
//
// Pixel (0,0) is the top-left corner. X increases rightward and Y increases
// downward. The first channel of pixel (x, y) is at Offset(x, y).
//
// # Loading
//
// Loader reads files through a byte-bounded LRU cache of encoded contents
// and decodes them with EXIF auto-orientation. Content that does not sniff as
// image/* is rejected with ErrNotAnImage before decoding is attempted.
//
// # Thread Safety
//
// Loader is safe for concurrent use. A Raster is a plain value; callers that
// share one across goroutines must treat it as read-only.
package raster

// Package imaging normalises uploaded images before they are stored.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	// Decoders for the formats browsers and scanners commonly produce.
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

const (
	// DefaultMaxWidth bounds the width of stored images in pixels.
	DefaultMaxWidth = 1200
	// DefaultQuality is the JPEG quality used when re-encoding, on a 1-100 scale.
	DefaultQuality = 70
)

// Options tunes the compressor.
type Options struct {
	MaxWidth int
	Quality  int
}

// Compressor re-encodes images into bounded-size JPEGs.
type Compressor struct {
	maxWidth int
	quality  int
	logger   zerolog.Logger
}

// NewCompressor builds a compressor, applying defaults to unset options.
func NewCompressor(opts Options, logger zerolog.Logger) *Compressor {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	return &Compressor{
		maxWidth: opts.MaxWidth,
		quality:  opts.Quality,
		logger:   logger.With().Str("component", "image_compressor").Logger(),
	}
}

// Compress returns a copy of att suitable for durable storage. Non-image
// payloads pass through untouched. Images are scaled down to the maximum
// width, flattened onto white and re-encoded as JPEG. Any decode or encode
// failure returns the original attachment unchanged.
func (c *Compressor) Compress(att models.Attachment) models.Attachment {
	mediaType := strings.TrimSpace(att.MediaType)
	if mediaType == "" && len(att.Bytes) > 0 {
		mediaType = mimetype.Detect(att.Bytes).String()
	}
	if !(models.Attachment{MediaType: mediaType}).IsImage() {
		return att
	}

	src, format, err := image.Decode(bytes.NewReader(att.Bytes))
	if err != nil {
		c.logger.Debug().Err(err).Str("media_type", mediaType).Msg("image decode failed, storing original")
		return att
	}

	bounds := src.Bounds()
	width, height := ScaledSize(bounds.Dx(), bounds.Dy(), c.maxWidth)

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: c.quality}); err != nil {
		c.logger.Debug().Err(err).Str("format", format).Msg("jpeg encode failed, storing original")
		return att
	}

	c.logger.Debug().
		Str("format", format).
		Int("original_bytes", len(att.Bytes)).
		Int("compressed_bytes", out.Len()).
		Int("width", width).
		Msg("image compressed")

	return models.Attachment{Bytes: out.Bytes(), MediaType: "image/jpeg", Fresh: att.Fresh}
}

// ScaledSize returns the dimensions after scaling uniformly so the width does
// not exceed maxWidth. Images that are already narrow keep their size.
func ScaledSize(width, height, maxWidth int) (int, int) {
	if width <= 0 || height <= 0 || maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	scale := float64(maxWidth) / float64(width)
	scaledHeight := int(float64(height)*scale + 0.5)
	if scaledHeight < 1 {
		scaledHeight = 1
	}
	return maxWidth, scaledHeight
}

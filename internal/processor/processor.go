// Package processor implements the image transform engine: decode, crop,
// resize, background compositing for alpha-less targets, size-targeted
// quality search, and N-way grid merge.
package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	wbmp "github.com/Ashutoshgit47/ImageWrangler/internal/bmp"
	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
	"github.com/Ashutoshgit47/ImageWrangler/internal/security"
)

var (
	// ErrDecode marks source bytes that could not be parsed. The validator
	// normally screens inputs first; this is the second line of defense for
	// callers that invoke the engine directly.
	ErrDecode = errors.New("cannot decode source image")

	// ErrExport marks an encoder failure.
	ErrExport = errors.New("cannot export image")

	// ErrTooLarge marks a requested raster that would exceed the pixel limits.
	ErrTooLarge = errors.New("requested dimensions exceed limits")

	ErrUnsupportedOutput = errors.New("unsupported output format")
)

// Engine performs crop/resize/format-conversion transforms. It holds no
// per-request state; decoded pixel buffers live only for the duration of a
// single call and never cross between requests.
type Engine struct {
	limits security.Limits
}

// New creates an Engine bounded by the given limits.
func New(limits security.Limits) *Engine {
	return &Engine{limits: limits}
}

// Process decodes src, applies the crop and resize described by opts, and
// encodes the result in the requested output format. Source bounds are
// checked before the decode so a small file declaring a huge raster never
// gets a pixel buffer.
func (e *Engine) Process(src []byte, opts model.ProcessOptions) ([]byte, error) {
	opts.Normalize()

	if err := e.checkDecodedBounds(src); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// Resolve the source rectangle: the whole image, or the caller's crop
	// region in source pixel coordinates.
	if opts.Crop != nil {
		bounds := img.Bounds()
		if err := opts.Crop.Validate(bounds.Dx(), bounds.Dy()); err != nil {
			return nil, err
		}
		c := *opts.Crop
		img = imaging.Crop(img, image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H))
	}

	width, height, err := e.resolveTargetSize(img, opts)
	if err != nil {
		return nil, err
	}

	// Scale-to-fit: the rectangle chosen above exactly determines the
	// visible content, so the resample fills the whole target surface.
	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	var surface *image.NRGBA
	if opts.OutputFormat.HasAlpha() {
		surface = resized
	} else {
		// Alpha-less targets get an opaque white underlay so transparent
		// source pixels do not turn black.
		surface = compositeOnWhite(resized, width, height)
	}

	if opts.OutputFormat == model.FormatBMP {
		out, err := wbmp.Encode(surface)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExport, err)
		}
		return out, nil
	}

	if opts.TargetSizeBytes > 0 && opts.OutputFormat.SupportsQuality() {
		return e.searchTargetSize(surface, opts.OutputFormat, opts.TargetSizeBytes)
	}

	// A byte-size target on a lossless format is a caller error handled at
	// the API boundary; here it is ignored and the image exported once.
	return encodeAt(surface, opts.OutputFormat, opts.Quality)
}

// checkDecodedBounds reads only the header dimensions of src and rejects
// rasters that would exceed the pixel ceilings. It must run before any
// full decode allocates a pixel buffer.
func (e *Engine) checkDecodedBounds(src []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if e.limits.ExceedsDimensions(cfg.Width, cfg.Height) {
		return fmt.Errorf("%w: source %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// resolveTargetSize clamps the requested dimensions to [1, max] on each
// axis, optionally preserving the source aspect ratio, and rejects targets
// whose area exceeds the pixel ceiling.
func (e *Engine) resolveTargetSize(src image.Image, opts model.ProcessOptions) (int, int, error) {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()

	width := opts.TargetWidth
	height := opts.TargetHeight
	if width <= 0 && height <= 0 {
		width, height = srcW, srcH
	}

	if opts.KeepAspect {
		switch {
		case width <= 0:
			width = int(math.Round(float64(height) * float64(srcW) / float64(srcH)))
		case height <= 0:
			height = int(math.Round(float64(width) * float64(srcH) / float64(srcW)))
		default:
			ratio := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
			width = int(math.Round(float64(srcW) * ratio))
			height = int(math.Round(float64(srcH) * ratio))
		}
	}

	width = clamp(width, 1, e.limits.MaxWidth)
	height = clamp(height, 1, e.limits.MaxHeight)
	if width*height > e.limits.MaxPixels {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrTooLarge, width, height)
	}

	return width, height, nil
}

// compositeOnWhite paints img over an opaque white surface of exactly
// width x height.
func compositeOnWhite(img image.Image, width, height int) *image.NRGBA {
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(img, 0, 0)
	return imaging.Clone(dc.Image())
}

// encodeAt exports img once at the given quality (ignored by formats
// without a quality knob).
func encodeAt(img *image.NRGBA, format model.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case model.FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case model.FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case model.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOutput, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}

	return buf.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

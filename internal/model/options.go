package model

import (
	"errors"
	"fmt"
)

// Format identifies an image encoding.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatGIF     Format = "gif" // accepted as input only, never as output
)

var (
	ErrUnknownFormat = errors.New("unknown output format")

	// ErrTargetSizeLossless marks the caller error of requesting a byte-size
	// target for a format whose encoder has no quality knob.
	ErrTargetSizeLossless = errors.New("target size requires a lossy output format")

	ErrInvalidQuality = errors.New("quality must be between 1 and 100")
	ErrInvalidCrop    = errors.New("invalid crop region")
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "bmp":
		return FormatBMP, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// SupportsQuality reports whether the format's encoder takes a quality
// parameter, which is what makes a byte-size target searchable.
func (f Format) SupportsQuality() bool {
	return f == FormatJPEG || f == FormatWebP
}

// HasAlpha reports whether the encoded format can carry transparency.
// Targets without alpha are composited over opaque white before export.
func (f Format) HasAlpha() bool {
	return f == FormatPNG || f == FormatWebP
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// CropRegion is an axis-aligned rectangle in source-image pixel coordinates.
type CropRegion struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Validate checks the region against the source dimensions.
func (c CropRegion) Validate(srcWidth, srcHeight int) error {
	if c.W <= 0 || c.H <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrInvalidCrop)
	}
	if c.X < 0 || c.Y < 0 {
		return fmt.Errorf("%w: origin must be non-negative", ErrInvalidCrop)
	}
	if c.X+c.W > srcWidth || c.Y+c.H > srcHeight {
		return fmt.Errorf("%w: region %dx%d+%d+%d exceeds source %dx%d",
			ErrInvalidCrop, c.W, c.H, c.X, c.Y, srcWidth, srcHeight)
	}
	return nil
}

// ProcessOptions describes one transform. A request is immutable once
// submitted; editing creates a new request for the same logical image.
type ProcessOptions struct {
	OutputFormat    Format      `json:"outputFormat"`
	Quality         int         `json:"quality"`
	TargetWidth     int         `json:"targetWidth"`
	TargetHeight    int         `json:"targetHeight"`
	KeepAspect      bool        `json:"keepAspect"`
	Crop            *CropRegion `json:"cropRegion,omitempty"`
	TargetSizeBytes int         `json:"targetSizeBytes,omitempty"`
}

// DefaultOptions returns the defaults applied to unset fields.
func DefaultOptions() ProcessOptions {
	return ProcessOptions{
		OutputFormat: FormatJPEG,
		Quality:      80,
		KeepAspect:   true,
	}
}

// Normalize fills unset fields with their defaults.
func (o *ProcessOptions) Normalize() {
	if o.OutputFormat == FormatUnknown {
		o.OutputFormat = FormatJPEG
	}
	if o.Quality == 0 {
		o.Quality = 80
	}
}

// Validate rejects option combinations a caller should never submit.
// The engine tolerates some of them anyway (it is a second line of
// defense), but the API boundary reports them as caller errors.
func (o ProcessOptions) Validate() error {
	switch o.OutputFormat {
	case FormatJPEG, FormatPNG, FormatWebP, FormatBMP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, o.OutputFormat)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuality, o.Quality)
	}
	if o.TargetSizeBytes > 0 && !o.OutputFormat.SupportsQuality() {
		return fmt.Errorf("%w: %s", ErrTargetSizeLossless, o.OutputFormat)
	}
	if o.Crop != nil && (o.Crop.W <= 0 || o.Crop.H <= 0 || o.Crop.X < 0 || o.Crop.Y < 0) {
		return fmt.Errorf("%w: %+v", ErrInvalidCrop, *o.Crop)
	}
	return nil
}

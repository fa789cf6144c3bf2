package validator

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF bounds decoder
	_ "image/jpeg" // register JPEG bounds decoder
	_ "image/png"  // register PNG bounds decoder
	"strings"

	_ "github.com/chai2010/webp" // register WebP bounds decoder
	_ "golang.org/x/image/bmp"   // register BMP bounds decoder

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
	"github.com/Ashutoshgit47/ImageWrangler/internal/security"
)

// ErrRejected is the root of every validation failure; callers can treat
// any error wrapping it as a per-file skip, never as a batch-fatal problem.
var ErrRejected = errors.New("validation rejected")

var (
	ErrEmptyFile        = fmt.Errorf("%w: empty file", ErrRejected)
	ErrFileTooLarge     = fmt.Errorf("%w: file exceeds size limit", ErrRejected)
	ErrSpoofedType      = fmt.Errorf("%w: declared type is not an image", ErrRejected)
	ErrUnknownSignature = fmt.Errorf("%w: unsupported or unknown format", ErrRejected)
	ErrUnreadableBounds = fmt.Errorf("%w: cannot determine image dimensions", ErrRejected)
	ErrBombDimensions   = fmt.Errorf("%w: decoded dimensions exceed limits", ErrRejected)
)

// Validator authenticates raw image bytes before any full decode is
// attempted. The signature table below is the single trust boundary: a
// format missing from it is rejected even if the runtime could decode it,
// because only listed signatures have been vetted for the bounds check.
type Validator struct {
	limits security.Limits
}

// New creates a Validator with the given resource limits.
func New(limits security.Limits) *Validator {
	return &Validator{limits: limits}
}

// Validate runs the full check chain, short-circuiting on the first
// failure: emptiness, encoded size, declared MIME category, magic-byte
// signature, and a bounds-only decode that guards against decompression
// bombs. The probe reads width and height without materializing pixels;
// if the probe itself fails the input is treated as unsafe (fail closed).
func (v *Validator) Validate(data []byte, declaredMIME string) (model.Format, error) {
	format, err := v.QuickValidate(data, declaredMIME)
	if err != nil {
		return model.FormatUnknown, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.FormatUnknown, fmt.Errorf("%w: %v", ErrUnreadableBounds, err)
	}
	if v.limits.ExceedsDimensions(cfg.Width, cfg.Height) {
		return model.FormatUnknown, fmt.Errorf("%w: %dx%d", ErrBombDimensions, cfg.Width, cfg.Height)
	}

	return format, nil
}

// QuickValidate checks size, MIME category, and signature only, skipping
// the bounds probe. Suited for paths where a cheap accept/reject is enough.
func (v *Validator) QuickValidate(data []byte, declaredMIME string) (model.Format, error) {
	if len(data) == 0 {
		return model.FormatUnknown, ErrEmptyFile
	}
	if v.limits.ExceedsFileSize(len(data)) {
		return model.FormatUnknown, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}
	if !strings.HasPrefix(strings.ToLower(declaredMIME), "image/") {
		return model.FormatUnknown, fmt.Errorf("%w: %q", ErrSpoofedType, declaredMIME)
	}

	format, ok := sniffFormat(data)
	if !ok {
		return model.FormatUnknown, ErrUnknownSignature
	}

	return format, nil
}

// sniffFormat matches the leading bytes against the fixed allowlist of
// known signatures. WebP needs the nested container tag at offset 8 in
// addition to the RIFF header. GIF (both header variants) is accepted
// for input only.
func sniffFormat(data []byte) (model.Format, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return model.FormatJPEG, true
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return model.FormatPNG, true
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return model.FormatWebP, true
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return model.FormatGIF, true
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return model.FormatBMP, true
	default:
		return model.FormatUnknown, false
	}
}

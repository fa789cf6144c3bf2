package security

// Process-wide resource ceilings. A single decoded image at the pixel
// ceiling already occupies ~200MB of RGBA data, so these are deliberately
// constants rather than configuration: loosening them must be a code change.
const (
	MaxWidth         = 15000
	MaxHeight        = 15000
	MaxPixels        = 50_000_000
	MaxFileSizeBytes = 100 * 1024 * 1024
)

// Limits bounds every decoded or requested dimension. The checks must run
// before any pixel buffer is allocated.
type Limits struct {
	MaxWidth         int
	MaxHeight        int
	MaxPixels        int
	MaxFileSizeBytes int
}

// Default returns the process-wide limits.
func Default() Limits {
	return Limits{
		MaxWidth:         MaxWidth,
		MaxHeight:        MaxHeight,
		MaxPixels:        MaxPixels,
		MaxFileSizeBytes: MaxFileSizeBytes,
	}
}

// ExceedsDimensions reports whether a width x height raster would blow past
// the dimension or total-pixel ceilings.
func (l Limits) ExceedsDimensions(width, height int) bool {
	if width > l.MaxWidth || height > l.MaxHeight {
		return true
	}
	return width*height > l.MaxPixels
}

// ExceedsFileSize reports whether an encoded input is too large to accept.
func (l Limits) ExceedsFileSize(size int) bool {
	return size > l.MaxFileSizeBytes
}

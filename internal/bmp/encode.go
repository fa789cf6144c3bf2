// Package bmp writes uncompressed 24-bit BMP files. The output is
// bit-exact: a 14-byte file header, a 40-byte info header with a negative
// height (top-down row order), and BGR rows zero-padded to a multiple of
// four bytes. Total size is always 54 + height*(3*width + pad).
package bmp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
)

const (
	fileHeaderSize = 14
	infoHeaderSize = 40
	headerSize     = fileHeaderSize + infoHeaderSize

	// 72 DPI expressed in pixels per metre.
	resolutionPPM = 2835
)

var ErrEmptyImage = errors.New("bmp: empty image")

// EncodedSize returns the exact output size in bytes for a width x height
// image.
func EncodedSize(width, height int) int {
	return headerSize + height*rowSize(width)
}

func rowSize(width int) int {
	raw := 3 * width
	return raw + (4-raw%4)%4
}

// Encode serializes src as an uncompressed top-down 24-bit BMP. Alpha is
// dropped; the result is lossless but non-transparent. Pure and
// deterministic, no I/O.
func Encode(src *image.NRGBA) ([]byte, error) {
	width := src.Bounds().Dx()
	height := src.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, width, height)
	}

	row := rowSize(width)
	total := headerSize + height*row
	out := make([]byte, total)

	// File header.
	out[0] = 'B'
	out[1] = 'M'
	binary.LittleEndian.PutUint32(out[2:6], uint32(total))
	// Bytes 6-9 are reserved and stay zero.
	binary.LittleEndian.PutUint32(out[10:14], headerSize)

	// Info header. Height is stored negated to declare top-down row order,
	// so rows are written exactly as they appear in src.
	binary.LittleEndian.PutUint32(out[14:18], infoHeaderSize)
	binary.LittleEndian.PutUint32(out[18:22], uint32(int32(width)))
	binary.LittleEndian.PutUint32(out[22:26], uint32(int32(-height)))
	binary.LittleEndian.PutUint16(out[26:28], 1)  // planes
	binary.LittleEndian.PutUint16(out[28:30], 24) // bits per pixel
	binary.LittleEndian.PutUint32(out[30:34], 0)  // BI_RGB, no compression
	binary.LittleEndian.PutUint32(out[34:38], uint32(height*row))
	binary.LittleEndian.PutUint32(out[38:42], resolutionPPM)
	binary.LittleEndian.PutUint32(out[42:46], resolutionPPM)
	// Palette fields (colors used / important) stay zero.

	min := src.Bounds().Min
	for y := 0; y < height; y++ {
		srcOff := src.PixOffset(min.X, min.Y+y)
		dstOff := headerSize + y*row
		for x := 0; x < width; x++ {
			out[dstOff+3*x+0] = src.Pix[srcOff+4*x+2] // B
			out[dstOff+3*x+1] = src.Pix[srcOff+4*x+1] // G
			out[dstOff+3*x+2] = src.Pix[srcOff+4*x+0] // R
		}
		// Padding bytes are already zero.
	}

	return out, nil
}

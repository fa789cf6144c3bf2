package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
)

// mergeQuality is the fixed JPEG quality used for grid-merge exports.
const mergeQuality = 90

var ErrNoSources = errors.New("merge requires at least one source image")

// Merge composites N source images into a near-square grid. Cell size is
// the maximum width and height across all sources; image i lands in row
// i/cols, column i%cols, centered within its cell on a white background.
// Every source's declared bounds and the combined canvas area are checked
// against the pixel ceiling before any surface is allocated.
func (e *Engine) Merge(sources [][]byte) ([]byte, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	images := make([]*image.NRGBA, 0, len(sources))
	cellW, cellH := 0, 0
	for i, src := range sources {
		if err := e.checkDecodedBounds(src); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		decoded, err := imaging.Decode(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("%w: source %d: %v", ErrDecode, i, err)
		}
		img := imaging.Clone(decoded)
		if w := img.Bounds().Dx(); w > cellW {
			cellW = w
		}
		if h := img.Bounds().Dy(); h > cellH {
			cellH = h
		}
		images = append(images, img)
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(images)))))
	rows := (len(images) + cols - 1) / cols

	canvasW := cols * cellW
	canvasH := rows * cellH
	if canvasW*canvasH > e.limits.MaxPixels {
		return nil, fmt.Errorf("%w: merge canvas %dx%d", ErrTooLarge, canvasW, canvasH)
	}

	dc := gg.NewContext(canvasW, canvasH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, img := range images {
		row := i / cols
		col := i % cols
		x := col*cellW + (cellW-img.Bounds().Dx())/2
		y := row*cellH + (cellH-img.Bounds().Dy())/2
		dc.DrawImage(img, x, y)
		images[i] = nil // drop the pixel buffer as soon as it is composited
	}

	return encodeAt(imaging.Clone(dc.Image()), model.FormatJPEG, mergeQuality)
}

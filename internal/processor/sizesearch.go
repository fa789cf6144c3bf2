package processor

import (
	"image"
	"math"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
)

// searchTargetSize runs at most maxSizeProbes binary-search probes over the
// encoder quality range beyond the initial full-quality export.
const maxSizeProbes = 5

// Quality range searched, as the encoder's fractional quality.
const (
	minSearchQuality = 0.01
	maxSearchQuality = 1.00
)

// searchTargetSize binary-searches the quality parameter for the largest
// quality whose output still fits under target bytes.
//
// The target is a best-effort ceiling, never a hard contract: if even the
// lowest quality exceeds it, the smallest achievable export is returned
// rather than an error.
func (e *Engine) searchTargetSize(img *image.NRGBA, format model.Format, target int) ([]byte, error) {
	// Best case first: full quality already fits, no search needed.
	out, err := encodeAt(img, format, qualityPercent(maxSearchQuality))
	if err != nil {
		return nil, err
	}
	if len(out) <= target {
		return out, nil
	}

	minQ, maxQ := minSearchQuality, maxSearchQuality
	var bestUnder []byte

	for i := 0; i < maxSizeProbes; i++ {
		mid := (minQ + maxQ) / 2
		out, err = encodeAt(img, format, qualityPercent(mid))
		if err != nil {
			return nil, err
		}
		if len(out) < target {
			// Under budget: keep it and try for higher quality.
			bestUnder = out
			minQ = mid
		} else {
			maxQ = mid
		}
	}

	if bestUnder != nil {
		return bestUnder, nil
	}

	// Nothing fit within the probe budget; fall back to the smallest
	// achievable export even though it may exceed the target.
	return encodeAt(img, format, qualityPercent(minSearchQuality))
}

// qualityPercent maps a fractional quality in (0, 1] to the 1-100 scale
// shared by the JPEG and WebP encoders.
func qualityPercent(q float64) int {
	return clamp(int(math.Round(q*100)), 1, 100)
}

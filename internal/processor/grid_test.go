package processor

import (
	"errors"
	"image/color"
	"testing"

	"github.com/Ashutoshgit47/ImageWrangler/internal/security"
)

func TestMergeFourQuadrants(t *testing.T) {
	colors := []color.NRGBA{
		{R: 0xff, A: 0xff},          // red
		{G: 0xff, A: 0xff},          // green
		{B: 0xff, A: 0xff},          // blue
		{R: 0xff, G: 0xff, A: 0xff}, // yellow
	}

	sources := make([][]byte, len(colors))
	for i, c := range colors {
		sources[i] = encodePNG(t, makeSolidImage(100, 100, c))
	}

	out, err := testEngine().Merge(sources)
	if err != nil {
		t.Fatal(err)
	}

	result := decode(t, out)
	if w, h := result.Bounds().Dx(), result.Bounds().Dy(); w != 200 || h != 200 {
		t.Fatalf("canvas = %dx%d, want 200x200 for a 2x2 grid", w, h)
	}

	// Sample each quadrant center; image i sits at row i/2, column i%2.
	centers := []struct{ x, y int }{{50, 50}, {150, 50}, {50, 150}, {150, 150}}
	for i, p := range centers {
		if got := result.NRGBAAt(p.x, p.y); !colorClose(got, colors[i], 16) {
			t.Errorf("quadrant %d center = %v, want ~%v", i, got, colors[i])
		}
	}
}

func TestMergeUnevenCountCentersImages(t *testing.T) {
	sources := [][]byte{
		encodePNG(t, makeSolidImage(100, 100, color.NRGBA{R: 0xff, A: 0xff})),
		encodePNG(t, makeSolidImage(100, 100, color.NRGBA{G: 0xff, A: 0xff})),
		encodePNG(t, makeSolidImage(50, 50, color.NRGBA{B: 0xff, A: 0xff})),
	}

	out, err := testEngine().Merge(sources)
	if err != nil {
		t.Fatal(err)
	}

	// 3 images: cols = ceil(sqrt(3)) = 2, rows = 2, cells 100x100.
	result := decode(t, out)
	if w, h := result.Bounds().Dx(), result.Bounds().Dy(); w != 200 || h != 200 {
		t.Fatalf("canvas = %dx%d, want 200x200", w, h)
	}

	// The small third image is centered in its cell over white.
	if got := result.NRGBAAt(50, 150); !colorClose(got, color.NRGBA{B: 0xff, A: 0xff}, 16) {
		t.Errorf("third image center = %v, want blue", got)
	}
	corner := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	if got := result.NRGBAAt(5, 105); !colorClose(got, corner, 16) {
		t.Errorf("third cell corner = %v, want white padding", got)
	}
	// The fourth cell is empty white.
	if got := result.NRGBAAt(150, 150); !colorClose(got, corner, 16) {
		t.Errorf("empty cell = %v, want white", got)
	}
}

func TestMergeSingleImage(t *testing.T) {
	out, err := testEngine().Merge([][]byte{
		encodePNG(t, makeSolidImage(60, 40, color.NRGBA{R: 0xff, A: 0xff})),
	})
	if err != nil {
		t.Fatal(err)
	}

	result := decode(t, out)
	if w, h := result.Bounds().Dx(), result.Bounds().Dy(); w != 60 || h != 40 {
		t.Fatalf("canvas = %dx%d, want 60x40", w, h)
	}
}

func TestMergeRejectsOversizedCanvas(t *testing.T) {
	limits := security.Default()
	limits.MaxPixels = 10_000
	engine := New(limits)

	sources := [][]byte{
		encodePNG(t, makeSolidImage(100, 100, color.NRGBA{A: 0xff})),
		encodePNG(t, makeSolidImage(100, 100, color.NRGBA{A: 0xff})),
	}

	// 2 images: 2x1 grid of 100x100 cells = 20k pixels > the 10k ceiling.
	if _, err := engine.Merge(sources); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestMergeRejectsOversizedSource(t *testing.T) {
	limits := security.Default()
	limits.MaxPixels = 10_000
	engine := New(limits)

	sources := [][]byte{
		encodePNG(t, makeSolidImage(10, 10, color.NRGBA{A: 0xff})),
		encodePNG(t, makeSolidImage(150, 150, color.NRGBA{A: 0xff})), // 22.5k pixels
	}

	// The second source's declared bounds exceed the ceiling; it must be
	// rejected before its pixels are ever decoded.
	if _, err := engine.Merge(sources); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge for the oversized source", err)
	}
}

func TestMergeNoSources(t *testing.T) {
	if _, err := testEngine().Merge(nil); !errors.Is(err, ErrNoSources) {
		t.Fatalf("got %v, want ErrNoSources", err)
	}
}

func TestMergeDecodeError(t *testing.T) {
	sources := [][]byte{
		encodePNG(t, makeSolidImage(10, 10, color.NRGBA{A: 0xff})),
		[]byte("garbage"),
	}
	if _, err := testEngine().Merge(sources); !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
}

package processor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/Ashutoshgit47/ImageWrangler/internal/model"
	"github.com/Ashutoshgit47/ImageWrangler/internal/security"
)

func testEngine() *Engine {
	return New(security.Default())
}

func makeSolidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func makeNoiseImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 0xff
	}
	return img
}

func encodePNG(t *testing.T, img *image.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return imaging.Clone(img)
}

func colorClose(got color.NRGBA, want color.NRGBA, tolerance int) bool {
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			d = -d
		}
		return d
	}
	return diff(got.R, want.R) <= tolerance &&
		diff(got.G, want.G) <= tolerance &&
		diff(got.B, want.B) <= tolerance
}

func TestCropThenResize(t *testing.T) {
	// Top square half red, bottom half blue.
	src := image.NewNRGBA(image.Rect(0, 0, 1000, 2000))
	for y := 0; y < 2000; y++ {
		for x := 0; x < 1000; x++ {
			off := y*src.Stride + x*4
			if y < 1000 {
				src.Pix[off] = 0xff
			} else {
				src.Pix[off+2] = 0xff
			}
			src.Pix[off+3] = 0xff
		}
	}

	out, err := testEngine().Process(encodePNG(t, src), model.ProcessOptions{
		OutputFormat: model.FormatPNG,
		Quality:      80,
		TargetWidth:  500,
		TargetHeight: 500,
		KeepAspect:   true,
		Crop:         &model.CropRegion{X: 0, Y: 0, W: 1000, H: 1000},
	})
	if err != nil {
		t.Fatal(err)
	}

	result := decode(t, out)
	if w, h := result.Bounds().Dx(), result.Bounds().Dy(); w != 500 || h != 500 {
		t.Fatalf("output size = %dx%d, want 500x500", w, h)
	}

	red := color.NRGBA{R: 0xff, A: 0xff}
	for _, p := range []image.Point{{0, 0}, {250, 250}, {499, 499}} {
		if got := result.NRGBAAt(p.X, p.Y); !colorClose(got, red, 8) {
			t.Errorf("pixel %v = %v, want the red top half of the source", p, got)
		}
	}
}

func TestCropRegionValidation(t *testing.T) {
	src := encodePNG(t, makeSolidImage(100, 100, color.NRGBA{R: 10, G: 20, B: 30, A: 0xff}))

	cases := []model.CropRegion{
		{X: -1, Y: 0, W: 10, H: 10},
		{X: 0, Y: 0, W: 0, H: 10},
		{X: 95, Y: 0, W: 10, H: 10},
		{X: 0, Y: 95, W: 10, H: 10},
	}
	for _, crop := range cases {
		c := crop
		_, err := testEngine().Process(src, model.ProcessOptions{
			OutputFormat: model.FormatPNG,
			Quality:      80,
			Crop:         &c,
		})
		if !errors.Is(err, model.ErrInvalidCrop) {
			t.Errorf("crop %+v: got %v, want ErrInvalidCrop", crop, err)
		}
	}
}

func TestTransparentSourceCompositesWhiteForJPEG(t *testing.T) {
	src := makeSolidImage(50, 50, color.NRGBA{}) // fully transparent
	out, err := testEngine().Process(encodePNG(t, src), model.ProcessOptions{
		OutputFormat: model.FormatJPEG,
		Quality:      90,
	})
	if err != nil {
		t.Fatal(err)
	}

	result := decode(t, out)
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	if got := result.NRGBAAt(25, 25); !colorClose(got, white, 12) {
		t.Fatalf("center pixel = %v, want white background, not black", got)
	}
}

func TestTransparencySurvivesPNG(t *testing.T) {
	src := makeSolidImage(20, 20, color.NRGBA{R: 0xff, A: 0x40})
	out, err := testEngine().Process(encodePNG(t, src), model.ProcessOptions{
		OutputFormat: model.FormatPNG,
		Quality:      80,
	})
	if err != nil {
		t.Fatal(err)
	}

	result := decode(t, out)
	if a := result.NRGBAAt(10, 10).A; a == 0xff {
		t.Fatalf("alpha = %d, want partial transparency preserved", a)
	}
}

func TestBMPExport(t *testing.T) {
	src := makeSolidImage(33, 10, color.NRGBA{R: 1, G: 2, B: 3, A: 0xff})
	out, err := testEngine().Process(encodePNG(t, src), model.ProcessOptions{
		OutputFormat: model.FormatBMP,
		Quality:      80,
	})
	if err != nil {
		t.Fatal(err)
	}

	if out[0] != 'B' || out[1] != 'M' {
		t.Fatalf("output does not start with BMP signature")
	}
	pad := (4 - (3*33)%4) % 4
	if want := 54 + 10*(3*33+pad); len(out) != want {
		t.Fatalf("output size = %d, want %d", len(out), want)
	}
}

func TestTargetDimensionsClamped(t *testing.T) {
	limits := security.Default()
	src := encodePNG(t, makeSolidImage(10, 10, color.NRGBA{A: 0xff}))

	// Oversized on both axes with a free aspect: clamped dims still exceed
	// the pixel ceiling, so the request is rejected before allocation.
	_, err := New(limits).Process(src, model.ProcessOptions{
		OutputFormat: model.FormatPNG,
		Quality:      80,
		TargetWidth:  20_000,
		TargetHeight: 20_000,
		KeepAspect:   false,
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}

	// A tall-but-thin target clamps within the budget and succeeds.
	out, err := New(limits).Process(src, model.ProcessOptions{
		OutputFormat: model.FormatPNG,
		Quality:      80,
		TargetWidth:  2,
		TargetHeight: 20_000,
		KeepAspect:   false,
	})
	if err != nil {
		t.Fatal(err)
	}
	result := decode(t, out)
	if w, h := result.Bounds().Dx(), result.Bounds().Dy(); w != 2 || h != 15_000 {
		t.Fatalf("output size = %dx%d, want 2x15000", w, h)
	}
}

func TestKeepAspectFitsWithinTarget(t *testing.T) {
	src := encodePNG(t, makeSolidImage(200, 100, color.NRGBA{R: 5, A: 0xff}))

	out, err := testEngine().Process(src, model.ProcessOptions{
		OutputFormat: model.FormatPNG,
		Quality:      80,
		TargetWidth:  50,
		TargetHeight: 50,
		KeepAspect:   true,
	})
	if err != nil {
		t.Fatal(err)
	}

	result := decode(t, out)
	if w, h := result.Bounds().Dx(), result.Bounds().Dy(); w != 50 || h != 25 {
		t.Fatalf("output size = %dx%d, want 50x25 (aspect preserved)", w, h)
	}
}

func TestProcessRejectsOversizedSource(t *testing.T) {
	limits := security.Default()
	limits.MaxPixels = 10_000
	src := encodePNG(t, makeSolidImage(150, 150, color.NRGBA{A: 0xff})) // 22.5k pixels

	// The declared bounds alone must reject the source; a full decode
	// here would materialize the very buffer the ceiling exists to stop.
	_, err := New(limits).Process(src, model.ProcessOptions{
		OutputFormat: model.FormatPNG,
		Quality:      80,
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge before any pixel decode", err)
	}
}

func TestDecodeErrorSurfaces(t *testing.T) {
	_, err := testEngine().Process([]byte("not an image"), model.ProcessOptions{
		OutputFormat: model.FormatPNG,
		Quality:      80,
	})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
}

func TestUnsupportedOutputFormat(t *testing.T) {
	src := encodePNG(t, makeSolidImage(10, 10, color.NRGBA{A: 0xff}))
	_, err := testEngine().Process(src, model.ProcessOptions{
		OutputFormat: model.FormatGIF,
		Quality:      80,
	})
	if !errors.Is(err, ErrUnsupportedOutput) {
		t.Fatalf("got %v, want ErrUnsupportedOutput", err)
	}
}

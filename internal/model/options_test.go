package model

import (
	"errors"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"jpeg", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"png", FormatPNG, false},
		{"webp", FormatWebP, false},
		{"bmp", FormatBMP, false},
		{"gif", FormatUnknown, true}, // input-only, never an output target
		{"tiff", FormatUnknown, true},
		{"", FormatUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTraits(t *testing.T) {
	if !FormatJPEG.SupportsQuality() || !FormatWebP.SupportsQuality() {
		t.Error("jpeg and webp must support quality")
	}
	if FormatPNG.SupportsQuality() || FormatBMP.SupportsQuality() {
		t.Error("png and bmp must not support quality")
	}
	if !FormatPNG.HasAlpha() || !FormatWebP.HasAlpha() {
		t.Error("png and webp must carry alpha")
	}
	if FormatJPEG.HasAlpha() || FormatBMP.HasAlpha() {
		t.Error("jpeg and bmp must not carry alpha")
	}
	if got := FormatWebP.ContentType(); got != "image/webp" {
		t.Errorf("ContentType = %q, want image/webp", got)
	}
	if got := Format("tga").ContentType(); got != "application/octet-stream" {
		t.Errorf("ContentType for unknown = %q", got)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	var opts ProcessOptions
	opts.Normalize()
	if opts.OutputFormat != FormatJPEG {
		t.Errorf("OutputFormat = %q, want jpeg", opts.OutputFormat)
	}
	if opts.Quality != 80 {
		t.Errorf("Quality = %d, want 80", opts.Quality)
	}

	// Set fields survive normalization.
	opts = ProcessOptions{OutputFormat: FormatPNG, Quality: 42}
	opts.Normalize()
	if opts.OutputFormat != FormatPNG || opts.Quality != 42 {
		t.Errorf("normalize clobbered set fields: %+v", opts)
	}
}

func TestOptionsValidate(t *testing.T) {
	valid := ProcessOptions{OutputFormat: FormatJPEG, Quality: 80}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}

	tests := []struct {
		name string
		opts ProcessOptions
		want error
	}{
		{
			"unknown format",
			ProcessOptions{OutputFormat: "tiff", Quality: 80},
			ErrUnknownFormat,
		},
		{
			"gif output",
			ProcessOptions{OutputFormat: FormatGIF, Quality: 80},
			ErrUnknownFormat,
		},
		{
			"quality too low",
			ProcessOptions{OutputFormat: FormatJPEG, Quality: 0},
			ErrInvalidQuality,
		},
		{
			"quality too high",
			ProcessOptions{OutputFormat: FormatJPEG, Quality: 101},
			ErrInvalidQuality,
		},
		{
			"target size on lossless",
			ProcessOptions{OutputFormat: FormatPNG, Quality: 80, TargetSizeBytes: 1024},
			ErrTargetSizeLossless,
		},
		{
			"negative crop origin",
			ProcessOptions{OutputFormat: FormatJPEG, Quality: 80, Crop: &CropRegion{X: -1, Y: 0, W: 10, H: 10}},
			ErrInvalidCrop,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	// A byte-size target on a lossy format is fine.
	lossy := ProcessOptions{OutputFormat: FormatWebP, Quality: 80, TargetSizeBytes: 1024}
	if err := lossy.Validate(); err != nil {
		t.Fatalf("lossy target size rejected: %v", err)
	}
}

func TestCropRegionValidate(t *testing.T) {
	tests := []struct {
		name    string
		crop    CropRegion
		wantErr bool
	}{
		{"full frame", CropRegion{0, 0, 100, 50}, false},
		{"interior", CropRegion{10, 10, 20, 20}, false},
		{"touches edge", CropRegion{90, 40, 10, 10}, false},
		{"zero width", CropRegion{0, 0, 0, 10}, true},
		{"negative origin", CropRegion{-1, 0, 10, 10}, true},
		{"past right edge", CropRegion{95, 0, 10, 10}, true},
		{"past bottom edge", CropRegion{0, 45, 10, 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.crop.Validate(100, 50)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCrop) {
				t.Errorf("error = %v, want ErrInvalidCrop", err)
			}
		})
	}
}

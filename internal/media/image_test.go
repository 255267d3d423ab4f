package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanoberholster/imagemeta/imagetype"
)

// writeTestPNG writes a width x height PNG with a deterministic gradient.
func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 100, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
}

func TestCompressImage_Resize(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		scale  float64
		wantW  int
		wantH  int
	}{
		{"Half scale", 80, 60, 0.5, 40, 30},
		{"Identity scale", 64, 48, 1.0, 64, 48},
		{"Quarter scale", 100, 40, 0.25, 25, 10},
		{"Rounds down", 5, 5, 0.5, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "image.png")
			writeTestPNG(t, path, tt.width, tt.height)

			result, err := CompressImage(path, tt.scale, 85)
			if err != nil {
				t.Fatalf("CompressImage() error = %v", err)
			}
			if result.OriginalBytes <= 0 || result.CompressedBytes <= 0 {
				t.Errorf("Result = %+v, want positive byte counts", result)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer f.Close()
			img, err := png.Decode(f)
			if err != nil {
				t.Fatalf("png.Decode() after compression error = %v", err)
			}
			if got := img.Bounds().Dx(); got != tt.wantW {
				t.Errorf("width = %d, want %d", got, tt.wantW)
			}
			if got := img.Bounds().Dy(); got != tt.wantH {
				t.Errorf("height = %d, want %d", got, tt.wantH)
			}
		})
	}
}

func TestCompressImage_ContentFormatWins(t *testing.T) {
	// PNG bytes behind a .jpg name must stay PNG after compression.
	path := filepath.Join(t.TempDir(), "misnamed.jpg")
	writeTestPNG(t, path, 32, 32)

	if _, err := CompressImage(path, 0.5, 85); err != nil {
		t.Fatalf("CompressImage() error = %v", err)
	}

	format, err := DetectImageType(path)
	if err != nil {
		t.Fatalf("DetectImageType() error = %v", err)
	}
	if format != imagetype.ImagePNG {
		t.Errorf("DetectImageType() = %v, want PNG", format)
	}
}

func TestCompressImage_CollapsedScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.png")
	writeTestPNG(t, path, 4, 4)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if _, err := CompressImage(path, 0.1, 85); err == nil {
		t.Fatal("CompressImage() error = nil, want collapse error")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failed compression modified the original file")
	}
}

func TestCompressImage_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	junk := bytes.Repeat([]byte("not an image "), 8)
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := CompressImage(path, 0.5, 85); err == nil {
		t.Fatal("CompressImage() error = nil, want decode error")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(junk, after) {
		t.Error("failed compression modified the original file")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries after failure, want 1", len(entries))
	}
}

func TestCompressImage_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.png")
	if _, err := CompressImage(path, 0.5, 85); err == nil {
		t.Fatal("CompressImage() error = nil, want stat error")
	}
}

func TestCompressImage_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	writeTestPNG(t, path, 16, 16)

	if _, err := CompressImage(path, 0.5, 85); err != nil {
		t.Fatalf("CompressImage() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "image.png" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory entries after compression = %v, want [image.png]", names)
	}
}

func TestFlatten(t *testing.T) {
	// A fully transparent source flattens to pure white.
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	flat := flatten(src)

	r, g, b, a := flat.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("flatten() pixel = (%v, %v, %v, %v), want opaque white", r, g, b, a)
	}
	if !isOpaque(flat) {
		t.Error("isOpaque(flatten()) = false, want true")
	}
}

func TestIsOpaque(t *testing.T) {
	opaque := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			opaque.Set(x, y, color.RGBA{10, 20, 30, 255})
		}
	}
	if !isOpaque(opaque) {
		t.Error("isOpaque() = false for fully opaque image")
	}

	translucent := image.NewRGBA(image.Rect(0, 0, 2, 2))
	translucent.Set(0, 0, color.RGBA{10, 20, 30, 128})
	if isOpaque(translucent) {
		t.Error("isOpaque() = true for image with translucent pixel")
	}
}

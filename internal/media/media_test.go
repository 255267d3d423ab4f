package media

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanoberholster/imagemeta/imagetype"
	"golang.org/x/image/bmp"
)

func TestIsImage(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".jpg", true},
		{".jpeg", true},
		{".png", true},
		{".gif", true},
		{".bmp", true},
		{".webp", true},
		{".PNG", true},
		{".mp4", false},
		{".xml", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsImage(tt.ext); got != tt.want {
			t.Errorf("IsImage(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestIsVideo(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".mp4", true},
		{".avi", true},
		{".mov", true},
		{".wmv", true},
		{".flv", true},
		{".webm", true},
		{".mkv", true},
		{".MOV", true},
		{".png", false},
		{".rels", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsVideo(tt.ext); got != tt.want {
			t.Errorf("IsVideo(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestDetectImageType(t *testing.T) {
	encodePNG := func(t *testing.T, path string) {
		t.Helper()
		writeTestPNG(t, path, 8, 8)
	}
	encodeJPEG := func(t *testing.T, path string) {
		t.Helper()
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		defer f.Close()
		if err := jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
			t.Fatalf("jpeg.Encode() error = %v", err)
		}
	}
	encodeGIF := func(t *testing.T, path string) {
		t.Helper()
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		defer f.Close()
		if err := gif.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
			t.Fatalf("gif.Encode() error = %v", err)
		}
	}
	encodeBMP := func(t *testing.T, path string) {
		t.Helper()
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		defer f.Close()
		if err := bmp.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
			t.Fatalf("bmp.Encode() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		write func(*testing.T, string)
		want  imagetype.ImageType
	}{
		{"PNG", encodePNG, imagetype.ImagePNG},
		{"JPEG", encodeJPEG, imagetype.ImageJPEG},
		{"GIF", encodeGIF, imagetype.ImageGIF},
		{"BMP", encodeBMP, imagetype.ImageBMP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Deliberately misleading extension: detection is content-based.
			path := filepath.Join(t.TempDir(), "asset.dat")
			tt.write(t, path)

			got, err := DetectImageType(path)
			if err != nil {
				t.Fatalf("DetectImageType() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectImageType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectImageType_Unknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	junk := bytes.Repeat([]byte("definitely not pixels "), 4)
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, _ := DetectImageType(path)
	if got != imagetype.ImageUnknown {
		t.Errorf("DetectImageType() = %v, want ImageUnknown", got)
	}
}

func TestDetectImageType_MissingFile(t *testing.T) {
	if _, err := DetectImageType(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Fatal("DetectImageType() error = nil, want open error")
	}
}

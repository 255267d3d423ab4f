package media

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/evanoberholster/imagemeta/imagetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// CompressImage resizes the image at path by scale and re-encodes it at the
// given quality, replacing the file in place. The output keeps the format
// found in the file's content, never the extension's claim. New dimensions
// are floor(width*scale) x floor(height*scale).
//
// The rewrite goes through a sibling temp file and an atomic rename, so on
// any failure the original file is untouched and no partial temp remains.
func CompressImage(path string, scale float64, quality int) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat image: %w", err)
	}
	originalSize := info.Size()

	format, err := DetectImageType(path)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := decodeImage(f, format)
	f.Close()
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode %s: %w", format, err)
	}

	// JPEG cannot carry an alpha channel. Flatten transparent sources onto
	// an opaque background before resampling so edge pixels do not smear.
	if format == imagetype.ImageJPEG && !isOpaque(img) {
		img = flatten(img)
	}

	bounds := img.Bounds()
	newW := int(float64(bounds.Dx()) * scale)
	newH := int(float64(bounds.Dy()) * scale)
	if newW < 1 || newH < 1 {
		return Result{}, fmt.Errorf("scale %.3f collapses %dx%d image to zero pixels", scale, bounds.Dx(), bounds.Dy())
	}

	resized := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := encodeImage(tmp, resized, format, quality); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to replace original: %w", err)
	}

	compressed, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat compressed image: %w", err)
	}

	log.Debug().
		Str("path", path).
		Str("format", format.String()).
		Int("width", newW).
		Int("height", newH).
		Int64("original_bytes", originalSize).
		Int64("compressed_bytes", compressed.Size()).
		Msg("Image compressed")

	return Result{OriginalBytes: originalSize, CompressedBytes: compressed.Size()}, nil
}

// decodeImage decodes r using the decoder for the detected format.
func decodeImage(r io.Reader, t imagetype.ImageType) (image.Image, error) {
	switch t {
	case imagetype.ImageJPEG:
		return jpeg.Decode(r)
	case imagetype.ImagePNG:
		return png.Decode(r)
	case imagetype.ImageGIF:
		return gif.Decode(r)
	case imagetype.ImageBMP:
		return bmp.Decode(r)
	case imagetype.ImageWebP:
		return webp.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported image format %s", t)
	}
}

// encodeImage writes img in the given format. Lossy formats honor quality;
// lossless formats use maximum compression effort instead.
func encodeImage(w io.Writer, img image.Image, t imagetype.ImageType, quality int) error {
	switch t {
	case imagetype.ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case imagetype.ImagePNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case imagetype.ImageGIF:
		return gif.Encode(w, img, nil)
	case imagetype.ImageBMP:
		return bmp.Encode(w, img)
	case imagetype.ImageWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		return fmt.Errorf("unsupported image format %s", t)
	}
}

// isOpaque reports whether every pixel in img is fully opaque.
func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

// flatten composites img onto a white background, discarding alpha.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

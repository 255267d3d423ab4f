// Package media compresses the image and video assets embedded in a
// presentation archive. Images are resized and re-encoded in pure Go; videos
// are re-encoded through an external ffmpeg binary when one is installed.
package media

import (
	"fmt"
	"os"
	"strings"

	"github.com/evanoberholster/imagemeta/imagetype"
)

// ImageExtensions maps the image file extensions eligible for compression
// to their MIME types.
var ImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// VideoExtensions maps the video file extensions eligible for compression
// to their MIME types.
var VideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// IsImage returns true if the extension belongs to a compressible image.
func IsImage(ext string) bool {
	_, ok := ImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo returns true if the extension belongs to a compressible video.
func IsVideo(ext string) bool {
	_, ok := VideoExtensions[strings.ToLower(ext)]
	return ok
}

// DetectImageType reads the leading bytes of the file and reports the image
// format actually encoded there. The extension is deliberately ignored:
// assets are re-encoded in the format their content declares, so a
// mislabeled file keeps its true format.
func DetectImageType(path string) (imagetype.ImageType, error) {
	f, err := os.Open(path)
	if err != nil {
		return imagetype.ImageUnknown, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	t, err := imagetype.Scan(f)
	if err != nil {
		return imagetype.ImageUnknown, fmt.Errorf("failed to detect image type: %w", err)
	}
	return t, nil
}

package media

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ProcessImages compresses every image under dir in place. One bad file does
// not stop the pass: failures are logged and counted only in TotalFiles.
func ProcessImages(dir string, scale float64, quality int) Stats {
	var stats Stats
	walkMedia(dir, ImageExtensions, func(path string) {
		stats.TotalFiles++
		result, err := CompressImage(path, scale, quality)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping image")
			return
		}
		stats.Add(result)
	})
	logPass("images", stats)
	return stats
}

// ProcessVideos re-encodes every video under dir in place. A missing ffmpeg
// binary disables the whole pass; individual encode failures are logged and
// leave the original file untouched.
func ProcessVideos(ctx context.Context, dir string, crf int, preset Preset) Stats {
	var stats Stats
	if err := CheckFFmpegAvailable(); err != nil {
		log.Error().Err(err).Msg("Skipping video compression")
		return stats
	}
	walkMedia(dir, VideoExtensions, func(path string) {
		stats.TotalFiles++
		tempOutput := path + ".temp.mp4"
		result, err := CompressVideo(ctx, path, tempOutput, crf, preset)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping video")
			return
		}
		if err := os.Rename(tempOutput, path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to replace video")
			if rmErr := os.Remove(tempOutput); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn().Err(rmErr).Str("path", tempOutput).Msg("Failed to remove temp video")
			}
			return
		}
		stats.Add(result)
	})
	logPass("videos", stats)
	return stats
}

// walkMedia visits every file under dir whose extension appears in exts.
// Unreadable paths are logged and skipped so one bad entry cannot abort
// the traversal.
func walkMedia(dir string, exts map[string]string, visit func(path string)) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := exts[ext]; !ok {
			return nil
		}
		visit(path)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Media walk aborted")
	}
}

func logPass(kind string, stats Stats) {
	if stats.TotalFiles == 0 {
		return
	}
	log.Info().
		Str("kind", kind).
		Int("processed", stats.ProcessedFiles).
		Int("total", stats.TotalFiles).
		Int64("original_bytes", stats.OriginalBytes).
		Int64("compressed_bytes", stats.CompressedBytes).
		Float64("reduction_pct", stats.Reduction()).
		Msg("Media pass complete")
}

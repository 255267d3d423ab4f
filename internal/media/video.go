package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/ksetafinansia/ppt-compressor/internal/metrics"
	"github.com/rs/zerolog/log"
)

// AudioBitrate is the fixed AAC bitrate applied to re-encoded audio streams.
const AudioBitrate = "128k"

// ErrFFmpegNotFound reports that no ffmpeg binary is on the PATH. Video
// compression degrades to a no-op in that case; it is not fatal to a run.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// Preset names an x264 encoder speed/efficiency tradeoff. Slower presets
// spend more CPU for a smaller output at the same CRF.
type Preset string

// Encoder presets from fastest to slowest.
const (
	PresetUltrafast Preset = "ultrafast"
	PresetSuperfast Preset = "superfast"
	PresetVeryfast  Preset = "veryfast"
	PresetFaster    Preset = "faster"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
	PresetSlower    Preset = "slower"
	PresetVeryslow  Preset = "veryslow"
)

// Presets lists every preset ffmpeg accepts, fastest first.
var Presets = []Preset{
	PresetUltrafast, PresetSuperfast, PresetVeryfast, PresetFaster,
	PresetFast, PresetMedium, PresetSlow, PresetSlower, PresetVeryslow,
}

// Valid reports whether p is a preset ffmpeg accepts.
func (p Preset) Valid() bool {
	for _, known := range Presets {
		if p == known {
			return true
		}
	}
	return false
}

// CheckFFmpegAvailable checks if ffmpeg is available in the system PATH.
// Call it once before a video pass: its absence disables video compression
// for the whole pass rather than failing file by file.
func CheckFFmpegAvailable() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return ErrFFmpegNotFound
	}
	log.Debug().Str("path", path).Msg("ffmpeg found")
	return nil
}

// IsFFmpegAvailable returns true if ffmpeg is available in the system PATH.
func IsFFmpegAvailable() bool {
	return CheckFFmpegAvailable() == nil
}

// CompressVideo re-encodes the video at inputPath to outputPath with x264 at
// the given CRF and preset; the audio stream becomes AAC at AudioBitrate.
// outputPath must differ from inputPath: the input is never written, and a
// failed encode removes any partial output before returning.
func CompressVideo(ctx context.Context, inputPath, outputPath string, crf int, preset Preset) (Result, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat video: %w", err)
	}
	originalSize := info.Size()

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return Result{}, ErrFFmpegNotFound
	}

	if probed, err := ProbeVideo(ctx, inputPath); err == nil {
		log.Debug().
			Str("path", inputPath).
			Str("codec", probed.Codec).
			Int("width", probed.Width).
			Int("height", probed.Height).
			Dur("duration", probed.Duration).
			Msg("Probed video before encode")
	}

	args := buildFFmpegArgs(inputPath, outputPath, crf, preset)

	log.Info().
		Str("path", inputPath).
		Int64("original_bytes", originalSize).
		Int("crf", crf).
		Str("preset", string(preset)).
		Msg("Compressing video")
	log.Debug().Strs("args", args).Msg("Running ffmpeg")

	start := time.Now()
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("path", outputPath).Msg("Failed to remove partial encode output")
		}
		metrics.New("PptCompressor").
			Metric("VideoEncodeMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("VideoEncodeErrors").
			Flush()
		return Result{}, fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, output)
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat encoded video: %w", err)
	}

	metrics.New("PptCompressor").
		Metric("VideoEncodeMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("VideoBytesIn", float64(originalSize), metrics.UnitBytes).
		Metric("VideoBytesOut", float64(outInfo.Size()), metrics.UnitBytes).
		Count("VideoEncodes").
		Flush()

	log.Info().
		Str("path", inputPath).
		Int64("original_bytes", originalSize).
		Int64("compressed_bytes", outInfo.Size()).
		Dur("encode_time", elapsed).
		Msg("Video compressed")

	return Result{OriginalBytes: originalSize, CompressedBytes: outInfo.Size()}, nil
}

// buildFFmpegArgs assembles the ffmpeg invocation: x264 video at the given
// CRF and preset, AAC audio at AudioBitrate, overwriting outputPath.
func buildFFmpegArgs(inputPath, outputPath string, crf int, preset Preset) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(crf),
		"-preset", string(preset),
		"-c:a", "aac",
		"-b:a", AudioBitrate,
		outputPath,
	}
}

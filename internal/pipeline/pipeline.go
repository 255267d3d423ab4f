// Package pipeline drives the end-to-end compression of one presentation
// archive: back up the original, extract, transcode the embedded media,
// repack in place, report the size reduction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksetafinansia/ppt-compressor/internal/media"
	"github.com/ksetafinansia/ppt-compressor/internal/metrics"
)

// mediaSubdir is where this archive format keeps its embedded media,
// relative to the archive root.
const mediaSubdir = "ppt/media"

const extractedDirName = "extracted"

var (
	// ErrNotFound reports that the source archive does not exist or is not
	// a regular file.
	ErrNotFound = errors.New("source archive not found")

	// ErrBadArchive reports a source that cannot be read as a zip archive.
	ErrBadArchive = errors.New("source is not a readable zip archive")

	// ErrRepack reports a failure while writing or installing the new
	// archive. The source file keeps its previous contents.
	ErrRepack = errors.New("failed to repack archive")
)

// Summary describes one finished run.
type Summary struct {
	BackupPath      string
	OriginalBytes   int64
	CompressedBytes int64
	Images          media.Stats
	Videos          media.Stats
	Duration        time.Duration
}

// Reduction returns the whole-archive size reduction as a percentage,
// comparing the repacked file against the backup.
func (s Summary) Reduction() float64 {
	if s.OriginalBytes == 0 {
		return 0
	}
	return (1 - float64(s.CompressedBytes)/float64(s.OriginalBytes)) * 100
}

// Run compresses the archive named by req in place. On success the source
// path holds the repacked archive and the summary reports what changed; on
// error the source file still holds the bytes it had when Run started. The
// backup created under req.BackupDir is never removed, even on failure.
//
// ctx bounds the external video encodes; Run imposes no deadline of its own.
func Run(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.SourcePath)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, req.SourcePath)
	}

	log.Info().
		Str("source", req.SourcePath).
		Int64("bytes", info.Size()).
		Float64("image_scale", req.ImageScale).
		Int("image_quality", req.ImageQuality).
		Int("video_crf", req.VideoCRF).
		Str("video_preset", string(req.VideoPreset)).
		Msg("Starting archive compression")

	backupPath, err := EnsureBackup(req.SourcePath, req.BackupDir)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "ppt-compress-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer cleanupScratch(scratch)

	extractRoot := filepath.Join(scratch, extractedDirName)
	if err := os.MkdirAll(extractRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction root: %w", err)
	}
	if err := extractArchive(req.SourcePath, extractRoot); err != nil {
		return nil, err
	}

	var images, videos media.Stats
	mediaDir := filepath.Join(extractRoot, filepath.FromSlash(mediaSubdir))
	if info, err := os.Stat(mediaDir); err != nil || !info.IsDir() {
		log.Warn().Str("dir", mediaSubdir).Msg("Archive has no media directory, skipping media passes")
	} else {
		images = media.ProcessImages(mediaDir, req.ImageScale, req.ImageQuality)
		videos = media.ProcessVideos(ctx, mediaDir, req.VideoCRF, req.VideoPreset)
	}

	if err := repackArchive(extractRoot, req.SourcePath); err != nil {
		return nil, err
	}

	repacked, err := os.Stat(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat repacked archive: %w", err)
	}
	original, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	summary := &Summary{
		BackupPath:      backupPath,
		OriginalBytes:   original.Size(),
		CompressedBytes: repacked.Size(),
		Images:          images,
		Videos:          videos,
		Duration:        time.Since(start),
	}

	emitRunMetrics(summary)

	log.Info().
		Str("source", req.SourcePath).
		Int64("original_bytes", summary.OriginalBytes).
		Int64("compressed_bytes", summary.CompressedBytes).
		Float64("reduction_pct", summary.Reduction()).
		Dur("duration", summary.Duration).
		Msg("Archive compression complete")

	return summary, nil
}

// cleanupScratch removes the run's scratch tree. Failure is logged and
// swallowed: a leftover temp dir never turns a finished run into an error.
func cleanupScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove scratch dir")
	}
}

func emitRunMetrics(s *Summary) {
	processed := s.Images.Merge(s.Videos)
	metrics.New("PptCompressor").
		Dimension("Operation", "CompressArchive").
		Metric("PipelineMs", float64(s.Duration.Milliseconds()), metrics.UnitMilliseconds).
		Metric("ArchiveBytesIn", float64(s.OriginalBytes), metrics.UnitBytes).
		Metric("ArchiveBytesOut", float64(s.CompressedBytes), metrics.UnitBytes).
		Metric("SizeReduction", s.Reduction(), metrics.UnitPercent).
		Metric("MediaFilesProcessed", float64(processed.ProcessedFiles), metrics.UnitCount).
		Count("ArchivesCompressed").
		Property("backupPath", s.BackupPath).
		Flush()
}

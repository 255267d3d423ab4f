package pipeline

import (
	"errors"
	"fmt"

	"github.com/ksetafinansia/ppt-compressor/internal/media"
)

// Defaults applied by NewRequest. They mirror the knobs most callers want:
// halve image dimensions, mid-range lossy quality, a balanced x264 encode.
const (
	DefaultImageScale   = 0.5
	DefaultImageQuality = 70
	DefaultVideoCRF     = 28
	DefaultVideoPreset  = media.PresetMedium
	DefaultBackupDir    = "backup"
)

// Request carries the parameters of one compression run. It is read-only to
// the pipeline: a run never mutates its request.
type Request struct {
	// SourcePath is the archive compressed in place.
	SourcePath string

	// ImageScale multiplies both image dimensions; (0, 1].
	ImageScale float64

	// ImageQuality is the lossy-encoder quality knob; [1, 100].
	ImageQuality int

	// VideoCRF is the x264 constant rate factor; [0, 51], lower is better.
	VideoCRF int

	// VideoPreset trades encode speed for compression ratio.
	VideoPreset media.Preset

	// BackupDir receives a one-time copy of the source before compression.
	BackupDir string
}

// NewRequest returns a Request for path with every parameter at its default.
func NewRequest(path string) Request {
	return Request{
		SourcePath:   path,
		ImageScale:   DefaultImageScale,
		ImageQuality: DefaultImageQuality,
		VideoCRF:     DefaultVideoCRF,
		VideoPreset:  DefaultVideoPreset,
		BackupDir:    DefaultBackupDir,
	}
}

// Validate checks every parameter range before a run starts.
func (r Request) Validate() error {
	if r.SourcePath == "" {
		return errors.New("source path is empty")
	}
	if r.ImageScale <= 0 || r.ImageScale > 1 {
		return fmt.Errorf("image scale %.3f out of range (0, 1]", r.ImageScale)
	}
	if r.ImageQuality < 1 || r.ImageQuality > 100 {
		return fmt.Errorf("image quality %d out of range [1, 100]", r.ImageQuality)
	}
	if r.VideoCRF < 0 || r.VideoCRF > 51 {
		return fmt.Errorf("video CRF %d out of range [0, 51]", r.VideoCRF)
	}
	if !r.VideoPreset.Valid() {
		return fmt.Errorf("unknown video preset %q", r.VideoPreset)
	}
	if r.BackupDir == "" {
		return errors.New("backup dir is empty")
	}
	return nil
}

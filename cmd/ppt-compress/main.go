package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ksetafinansia/ppt-compressor/internal/logging"
	"github.com/ksetafinansia/ppt-compressor/internal/media"
	"github.com/ksetafinansia/ppt-compressor/internal/pipeline"
)

// CLI flags
var (
	imageScaleFlag   float64
	imageQualityFlag int
	videoCRFFlag     int
	videoPresetFlag  string
	backupDirFlag    string
	checkFlag        bool
)

// rootCmd is the main Cobra command for the ppt-compress CLI.
var rootCmd = &cobra.Command{
	Use:   "ppt-compress [flags] <presentation.pptx>",
	Short: "Compress the images and videos embedded in a PowerPoint file",
	Long: `ppt-compress shrinks a .pptx archive in place by resizing and re-encoding
the media files packed inside it. The original file is copied into the
backup directory before anything else happens, and an existing backup is
never overwritten.

Images are resized and re-encoded in the format their content declares.
Videos are re-encoded with x264 when ffmpeg is installed; without ffmpeg
they are left untouched and the rest of the run proceeds.

Examples:
  ppt-compress deck.pptx
  ppt-compress --image-scale 0.4 --image-quality 60 deck.pptx
  ppt-compress --video-crf 30 --video-preset slow deck.pptx
  ppt-compress --backup-dir /mnt/backups deck.pptx
  ppt-compress --check`,
	Args: cobra.MaximumNArgs(1),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().Float64Var(&imageScaleFlag, "image-scale", pipeline.DefaultImageScale, "Scale factor applied to image dimensions (0 < scale <= 1)")
	rootCmd.Flags().IntVar(&imageQualityFlag, "image-quality", pipeline.DefaultImageQuality, "Quality level (1-100) for lossy image encoding")
	rootCmd.Flags().IntVar(&videoCRFFlag, "video-crf", pipeline.DefaultVideoCRF, "x264 constant rate factor (0-51, lower = higher quality)")
	rootCmd.Flags().StringVar(&videoPresetFlag, "video-preset", string(pipeline.DefaultVideoPreset), "x264 encoder preset (ultrafast..veryslow)")
	rootCmd.Flags().StringVar(&backupDirFlag, "backup-dir", pipeline.DefaultBackupDir, "Directory that receives the one-time backup copy")
	rootCmd.Flags().BoolVar(&checkFlag, "check", false, "Report whether ffmpeg is available, then exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	if checkFlag {
		runCheck()
		return
	}
	if len(args) != 1 {
		log.Fatal().Msg("Expected exactly one presentation file argument, see --help")
	}

	req := pipeline.NewRequest(args[0])
	req.ImageScale = imageScaleFlag
	req.ImageQuality = imageQualityFlag
	req.VideoCRF = videoCRFFlag
	req.VideoPreset = media.Preset(videoPresetFlag)
	req.BackupDir = backupDirFlag

	if err := req.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid parameters")
	}

	summary, err := pipeline.Run(context.Background(), req)
	if err != nil {
		log.Fatal().Err(err).Str("source", args[0]).Msg("Compression failed")
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("Compression Summary")
	fmt.Println("============================================")
	fmt.Printf("File: %s\n", args[0])
	fmt.Printf("Backup: %s\n", summary.BackupPath)
	fmt.Printf("Images: %d of %d compressed\n", summary.Images.ProcessedFiles, summary.Images.TotalFiles)
	fmt.Printf("Videos: %d of %d compressed\n", summary.Videos.ProcessedFiles, summary.Videos.TotalFiles)
	fmt.Printf("Size: %.1f MB -> %.1f MB (%.1f%% reduction)\n",
		float64(summary.OriginalBytes)/(1024*1024),
		float64(summary.CompressedBytes)/(1024*1024),
		summary.Reduction())
	fmt.Printf("Took: %s\n", summary.Duration.Round(time.Millisecond))
}

// runCheck reports encoder availability for the --check flag.
func runCheck() {
	if media.IsFFmpegAvailable() {
		fmt.Println("ffmpeg: available (videos will be compressed)")
		return
	}
	fmt.Println("ffmpeg: not found (videos will be left untouched)")
}

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// VideoInfo holds the stream properties ffprobe reports for a video file.
type VideoInfo struct {
	Codec     string
	Width     int
	Height    int
	Duration  time.Duration
	FrameRate float64
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// ProbeVideo inspects the video at path with ffprobe. It requires ffprobe on
// the PATH, which ships alongside ffmpeg in every common distribution.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	raw, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(raw, &probed); err != nil {
		return VideoInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := VideoInfo{}
	for _, stream := range probed.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.Codec = stream.CodecName
		info.Width = stream.Width
		info.Height = stream.Height
		info.FrameRate = parseFrameRate(stream.AvgFrameRate)
		break
	}
	if info.Codec == "" {
		return VideoInfo{}, fmt.Errorf("no video stream in %s", path)
	}

	if probed.Format.Duration != "" {
		seconds, err := strconv.ParseFloat(probed.Format.Duration, 64)
		if err != nil {
			return VideoInfo{}, fmt.Errorf("failed to parse duration %q: %w", probed.Format.Duration, err)
		}
		info.Duration = time.Duration(seconds * float64(time.Second))
	}

	return info, nil
}

// parseFrameRate converts ffprobe's fractional rate notation, such as
// "30000/1001", to frames per second. Malformed input yields zero.
func parseFrameRate(raw string) float64 {
	parts := strings.Split(raw, "/")
	switch len(parts) {
	case 1:
		rate, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0
		}
		return rate
	case 2:
		num, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0
		}
		den, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || den == 0 {
			return 0
		}
		return num / den
	default:
		return 0
	}
}

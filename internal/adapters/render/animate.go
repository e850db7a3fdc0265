package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Animator stitches rendered frames into MP4s by shelling out to ffmpeg.
type Animator struct {
	FFmpegPath string
	FPS        int
	logger     *slog.Logger
}

// NewAnimator returns an animator using the given ffmpeg binary, or the
// one on PATH when empty.
func NewAnimator(ffmpegPath string, logger *slog.Logger) *Animator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Animator{FFmpegPath: ffmpegPath, FPS: 25, logger: logger}
}

// Animate encodes every istep PNG in dir into out. maxSize, when
// positive, bounds the frame edge; either way dimensions are forced even
// for the encoder.
func (a *Animator) Animate(ctx context.Context, dir, out string, maxSize int) error {
	frames, err := filepath.Glob(filepath.Join(dir, "istep=*.png"))
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no rendered frames in %s", dir)
	}

	vf := "scale=trunc(iw/2)*2:trunc(ih/2)*2"
	if maxSize > 0 {
		vf = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease:force_divisible_by=2", maxSize, maxSize)
	}

	args := []string{
		"-y",
		"-framerate", strconv.Itoa(a.FPS),
		"-pattern_type", "glob",
		"-i", filepath.Join(dir, "istep=*.png"),
		"-vf", vf,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-an",
		"-movflags", "+faststart",
		out,
	}

	a.logger.Info("encoding animation", "frames", len(frames), "out", out)

	cmd := exec.CommandContext(ctx, a.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(&stderr))
	}
	return nil
}

func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"ytsummarize/internal/logging"
	"ytsummarize/internal/services"
)

var errNoSegments = errors.New("ffmpeg produced no segments")

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// split cuts source into SegmentSeconds-long pieces without re-encoding and
// returns them in playback order. cleanup removes the segment directory.
func (c *Client) split(ctx context.Context, source, format string) ([]string, func(), error) {
	dir, err := os.MkdirTemp(filepath.Dir(source), "segments-")
	if err != nil {
		return nil, func() {}, fmt.Errorf("create segment directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Debug("remove segment directory failed", logging.String("dir", dir), logging.Error(err))
		}
	}
	pattern := filepath.Join(dir, "part_%03d."+format)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-f", "segment",
		"-segment_time", strconv.Itoa(c.cfg.SegmentSeconds),
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern,
	}
	if _, err := c.runner(ctx, c.cfg.FFmpegBinary, args...); err != nil {
		cleanup()
		if ctx.Err() != nil {
			return nil, func() {}, ctx.Err()
		}
		return nil, func() {}, fmt.Errorf("%w: ffmpeg segment: %w", services.ErrExternalTool, err)
	}
	parts, err := filepath.Glob(filepath.Join(dir, "part_*."+format))
	if err != nil || len(parts) == 0 {
		cleanup()
		return nil, func() {}, fmt.Errorf("%w: %w in %s", services.ErrExternalTool, errNoSegments, dir)
	}
	sort.Strings(parts)
	for _, part := range parts {
		if info, err := os.Stat(part); err == nil && info.Size() > c.cfg.MaxUploadBytes {
			c.logger.Warn("audio segment still exceeds upload limit",
				logging.String("segment", filepath.Base(part)),
				logging.Int64("bytes", info.Size()),
				logging.String(logging.FieldErrorHint, "lower transcription.segment_seconds"))
		}
	}
	return parts, cleanup, nil
}

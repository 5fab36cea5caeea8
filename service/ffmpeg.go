package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// concatSegments merges the given segment files into a single faststart MP4
// using the concat demuxer, stream-copying so no re-encode happens. When
// trim is set the output is cut to startOffset/duration.
func concatSegments(ctx context.Context, paths []string, outputPath string, startOffset, duration float64, trim bool) error {
	if len(paths) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}

	concatFilePath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	defer os.Remove(concatFilePath)

	var concatContent strings.Builder
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		concatContent.WriteString(fmt.Sprintf("file '%s'\n", escapedPath))
	}
	if err := os.WriteFile(concatFilePath, []byte(concatContent.String()), 0644); err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}

	ffmpegArgs := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatFilePath,
	}
	if trim {
		if startOffset > 0 {
			ffmpegArgs = append(ffmpegArgs, "-ss", strconv.FormatFloat(startOffset, 'f', 3, 64))
		}
		ffmpegArgs = append(ffmpegArgs, "-t", strconv.FormatFloat(duration, 'f', 3, 64))
	}
	ffmpegArgs = append(ffmpegArgs,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("ffmpeg_output", string(output)).Msg("ffmpeg concat failed")
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

// probeDuration asks ffprobe for the container duration in seconds. A
// non-finite or non-positive result is reported as an error so callers fall
// back to their estimate.
func probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable ffprobe duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0, fmt.Errorf("implausible probed duration %f", duration)
	}
	return duration, nil
}

// remuxCopy repackages a transport-stream segment into MP4 without
// re-encoding.
func remuxCopy(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("ffmpeg_output", string(output)).Msg("ffmpeg remux failed")
		return fmt.Errorf("ffmpeg remux failed: %w", err)
	}
	return nil
}

// fileChecksum returns the sha256 hex digest and size of the file.
func fileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

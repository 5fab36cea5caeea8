package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SegmentFile resolves a buffer segment for playback, remuxing it into MP4
// framing for broad player compatibility. Remux results are cached per
// user; every failure past validation degrades to the original file rather
// than failing the request.
func (s *ReplayService) SegmentFile(ctx context.Context, userId uuid.UUID, filename string) (string, error) {
	if !segmentNamePattern.MatchString(filename) {
		return "", errors.Join(ErrBadRequest, errors.New("invalid segment name"))
	}

	session, err := s.repo.FindActiveByUserId(ctx, userId)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", errors.Join(ErrNotFound, errors.New("no active replay session"))
	}

	sourcePath := filepath.Join(s.segmentDir(session.SegmentPath), filename)
	cacheDir := s.cacheDir(userId)
	cachedPath := filepath.Join(cacheDir, filename+".mp4")

	if _, err := os.Stat(cachedPath); err == nil {
		return cachedPath, nil
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", errors.Join(ErrNotFound, errors.New("unknown segment"))
	}
	// Still mid-write; serve it as-is rather than caching a truncated copy.
	if info.Size() < s.cfg.Replay.MinSegmentBytes {
		return sourcePath, nil
	}

	if err := os.MkdirAll(cacheDir, os.ModePerm); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", cacheDir).Msg("failed to create remux cache directory")
		return sourcePath, nil
	}
	if err := s.remux(ctx, sourcePath, cachedPath); err != nil {
		os.Remove(cachedPath)
		return sourcePath, nil
	}
	return cachedPath, nil
}

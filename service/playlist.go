package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"replay-service/constant"
)

// Playlist renders an HLS manifest over the user's complete buffer
// segments. The buffer is a finite, seekable window, so the manifest is
// closed with an end marker rather than left open like a live stream.
func (s *ReplayService) Playlist(ctx context.Context, userId uuid.UUID) (string, error) {
	session, err := s.repo.FindActiveByUserId(ctx, userId)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", errors.Join(ErrNotFound, errors.New("no active replay session"))
	}

	segments, err := ListAndSort(ctx, s.segmentDir(session.SegmentPath))
	if err != nil {
		return "", err
	}
	complete := FilterComplete(ctx, segments, s.cfg.Replay.MinSegmentBytes)
	if len(complete) == 0 {
		return "", errors.Join(ErrBadRequest, errors.New("no segments available"))
	}

	var manifest strings.Builder
	manifest.WriteString("#EXTM3U\n")
	manifest.WriteString("#EXT-X-VERSION:3\n")
	manifest.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", constant.SegmentSeconds))
	manifest.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", complete[0].Sequence))
	for _, segment := range complete {
		manifest.WriteString(fmt.Sprintf("#EXTINF:%d.0,\n", constant.SegmentSeconds))
		manifest.WriteString(fmt.Sprintf("/api/replay/segments/%s\n", segment.Filename))
	}
	manifest.WriteString("#EXT-X-ENDLIST\n")

	return manifest.String(), nil
}

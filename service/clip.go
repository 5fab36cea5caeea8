package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"replay-service/constant"
	"replay-service/dto"
	"replay-service/entities"
)

// rangeSelection is the outcome of mapping a [start, end) second window
// onto the fixed-length segment grid.
type rangeSelection struct {
	segments    []Segment
	startOffset float64
	duration    float64
	trim        bool
}

// selectPreset picks the newest segments covering roughly durationMinutes
// of buffer, or everything if the buffer is shorter.
func selectPreset(segments []Segment, durationMinutes int) ([]Segment, error) {
	if len(segments) == 0 {
		return nil, errors.Join(ErrBadRequest, errors.New("no segments available"))
	}
	if durationMinutes <= 0 {
		return nil, errors.Join(ErrBadRequest, errors.New("duration must be positive"))
	}
	needed := durationMinutes * 60 / constant.SegmentSeconds
	if needed >= len(segments) {
		return segments, nil
	}
	return segments[len(segments)-needed:], nil
}

// selectRange maps an exact second window onto segment indices and computes
// the trim parameters needed to hit the window precisely. Trimming is only
// flagged when the window does not align with segment boundaries.
func selectRange(segments []Segment, startSeconds, endSeconds float64) (*rangeSelection, error) {
	if len(segments) == 0 {
		return nil, errors.Join(ErrBadRequest, errors.New("no segments available"))
	}
	if startSeconds < 0 || startSeconds >= endSeconds {
		return nil, errors.Join(ErrBadRequest, errors.New("range start must be non-negative and before range end"))
	}

	startIdx := int(math.Floor(startSeconds / constant.SegmentSeconds))
	endIdx := int(math.Ceil(endSeconds / constant.SegmentSeconds))
	if startIdx >= len(segments) || endIdx > len(segments) {
		return nil, errors.Join(ErrBadRequest, errors.New("requested range exceeds buffered duration"))
	}

	selected := segments[startIdx:endIdx]
	startOffset := startSeconds - float64(startIdx*constant.SegmentSeconds)
	duration := endSeconds - startSeconds
	trim := startOffset > 0 || duration != float64(len(selected)*constant.SegmentSeconds)

	return &rangeSelection{
		segments:    selected,
		startOffset: startOffset,
		duration:    duration,
		trim:        trim,
	}, nil
}

// CaptureClip cuts a clip out of the user's buffer, stores it and persists
// the File and ReplayClip rows. Delivery to a channel happens after the
// clip is persisted and never rolls it back.
func (s *ReplayService) CaptureClip(ctx context.Context, req dto.CaptureRequest) (*dto.CaptureResult, error) {
	session, err := s.repo.FindActiveByUserId(ctx, req.UserId)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.Join(ErrNotFound, errors.New("no active replay session"))
	}

	segments, err := ListAndSort(ctx, s.segmentDir(session.SegmentPath))
	if err != nil {
		return nil, err
	}

	var (
		selected  []Segment
		offset    float64
		trimTo    float64
		trim      bool
		estimated float64
	)
	if req.StartSeconds != nil && req.EndSeconds != nil {
		sel, err := selectRange(segments, *req.StartSeconds, *req.EndSeconds)
		if err != nil {
			return nil, err
		}
		selected = sel.segments
		offset = sel.startOffset
		trimTo = sel.duration
		trim = sel.trim
		estimated = sel.duration
	} else {
		selected, err = selectPreset(segments, req.DurationMinutes)
		if err != nil {
			return nil, err
		}
		estimated = float64(len(selected) * constant.SegmentSeconds)
	}

	tempDir, err := os.MkdirTemp("", "replay-capture-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	outputPath := filepath.Join(tempDir, "clip.mp4")
	if err := s.concat(ctx, segmentPaths(selected), outputPath, offset, trimTo, trim); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int("segments", len(selected)).Msg("failed to assemble clip")
		return nil, err
	}

	duration := estimated
	if probed, err := s.probe(ctx, outputPath); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("duration probe failed, using estimated duration")
	} else {
		duration = probed
	}

	checksum, sizeBytes, err := fileChecksum(outputPath)
	if err != nil {
		return nil, err
	}

	fileId := uuid.New()
	clipId := uuid.New()
	channelId := req.ChannelId
	if channelId == uuid.Nil {
		channelId = session.ChannelId
	}

	objectKey := fmt.Sprintf("replay-clips/%s/%s.mp4", req.UserId, fileId)
	fileName := fmt.Sprintf("replay-%s.mp4", time.Now().Format("20060102-150405"))

	if _, err := s.storage.FPutObject(ctx, s.cfg.MinIOBucket, objectKey, outputPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object_key", objectKey).Msg("failed to upload clip")
		return nil, err
	}

	file := &entities.File{
		ID:          fileId,
		ObjectKey:   objectKey,
		Name:        fileName,
		SizeBytes:   sizeBytes,
		Checksum:    checksum,
		ContentType: "video/mp4",
		CreatedAt:   time.Now(),
	}
	clip := &entities.ReplayClip{
		ID:              clipId,
		UserId:          req.UserId,
		FileId:          fileId,
		ChannelId:       channelId,
		DurationSeconds: duration,
		IsPublic:        req.IsPublic,
		CapturedAt:      time.Now(),
	}
	err = s.repo.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateFile(ctx, file); err != nil {
			return err
		}
		return s.repo.CreateClip(ctx, clip)
	})
	if err != nil {
		return nil, err
	}

	downloadUrl := ""
	if presigned, err := s.storage.PresignedGetObject(ctx, s.cfg.MinIOBucket, objectKey, 24*time.Hour, nil); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("object_key", objectKey).Msg("failed to presign clip download url")
	} else {
		downloadUrl = presigned.String()
	}

	messageId := ""
	if req.Destination == constant.ClipDestinationChannel {
		messageId = s.deliverClip(ctx, clip, file)
	}

	zerolog.Ctx(ctx).Info().
		Str("clip_id", clipId.String()).
		Str("session_id", session.ID.String()).
		Float64("duration_seconds", duration).
		Int64("size_bytes", sizeBytes).
		Msg("replay clip captured")

	return &dto.CaptureResult{
		ClipId:          clipId,
		FileId:          fileId,
		DurationSeconds: duration,
		SizeBytes:       sizeBytes,
		DownloadUrl:     downloadUrl,
		MessageId:       messageId,
	}, nil
}

// deliverClip posts the clip into its channel and emits the realtime event.
// The clip is already persisted; failures here are logged only.
func (s *ReplayService) deliverClip(ctx context.Context, clip *entities.ReplayClip, file *entities.File) string {
	messageId, err := s.chat.SendClipMessage(ctx, dto.ClipMessage{
		UserId:          clip.UserId,
		ChannelId:       clip.ChannelId,
		FileId:          file.ID,
		FileName:        file.Name,
		DurationSeconds: clip.DurationSeconds,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("clip_id", clip.ID.String()).Msg("failed to send clip message")
	}

	event := dto.ReplayEvent{
		Type:      constant.ReplayEventClipCreated,
		UserId:    clip.UserId,
		ChannelId: clip.ChannelId,
		ClipId:    clip.ID,
	}
	if err := s.notifier.PublishReplayEvent(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("clip_id", clip.ID.String()).Msg("failed to publish clip event")
	}
	return messageId
}

// StreamClip assembles the last durationMinutes of buffer into a temporary
// file for direct download. Nothing is persisted; the caller owns the file.
func (s *ReplayService) StreamClip(ctx context.Context, userId uuid.UUID, durationMinutes int) (string, error) {
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
	selected, err := selectPreset(segments, durationMinutes)
	if err != nil {
		return "", err
	}

	streamDir := filepath.Join(s.cfg.Replay.CacheRoot, "streams")
	if err := os.MkdirAll(streamDir, os.ModePerm); err != nil {
		return "", err
	}
	outputPath := filepath.Join(streamDir, uuid.New().String()+".mp4")
	if err := s.concat(ctx, segmentPaths(selected), outputPath, 0, 0, false); err != nil {
		return "", err
	}
	return outputPath, nil
}

func segmentPaths(segments []Segment) []string {
	paths := make([]string, 0, len(segments))
	for _, segment := range segments {
		paths = append(paths, segment.Path)
	}
	return paths
}

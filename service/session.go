package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"replay-service/constant"
	"replay-service/dto"
	"replay-service/entities"
	"replay-service/pkg/egress"
)

const (
	minVideoBitrate = 3_000_000
	maxVideoBitrate = 20_000_000
	// Screen content needs sharper encoding than camera video.
	bitsPerPixel = 5
)

func clampBitrate(width, height int) int {
	bitrate := width * height * bitsPerPixel
	if bitrate < minVideoBitrate {
		return minVideoBitrate
	}
	if bitrate > maxVideoBitrate {
		return maxVideoBitrate
	}
	return bitrate
}

// Start begins a recording for the user, stopping any session that is still
// active first so at most one row per user is ever active.
func (s *ReplayService) Start(ctx context.Context, req dto.StartRequest) (res *dto.SessionResult, err error) {
	lock := s.userLock(req.UserId)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.FindActiveByUserId(ctx, req.UserId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		zerolog.Ctx(ctx).Info().
			Str("user_id", req.UserId.String()).
			Str("session_id", existing.ID.String()).
			Msg("stopping previous replay session before starting a new one")
		if _, err := s.stopSession(ctx, existing); err != nil {
			return nil, err
		}
	}

	// The session id is minted before the external call so the output
	// path is known deterministically.
	sessionId := uuid.New()
	relPath := sessionId.String()
	absDir := s.segmentDir(relPath)
	if err := os.MkdirAll(absDir, os.ModePerm); err != nil {
		return nil, err
	}

	videoBitrate := 0
	if req.VideoTrackId != "" {
		resolution, resErr := s.egress.GetTrackResolution(ctx, req.RoomName, req.VideoTrackId)
		if resErr != nil || resolution == nil || resolution.Width <= 0 || resolution.Height <= 0 {
			zerolog.Ctx(ctx).Debug().AnErr("error", resErr).Msg("track resolution unavailable, using default encoding preset")
		} else {
			videoBitrate = clampBitrate(resolution.Width, resolution.Height)
		}
	}

	info, err := s.egress.StartRecording(ctx, egress.StartRecordingRequest{
		RoomName:            req.RoomName,
		VideoTrackId:        req.VideoTrackId,
		AudioTrackId:        req.AudioTrackId,
		ParticipantIdentity: req.ParticipantIdentity,
		OutputPathTemplate:  filepath.Join(absDir, "seg_{time}_{seq}.ts"),
		PlaylistPath:        filepath.Join(absDir, "live.m3u8"),
		SegmentSeconds:      constant.SegmentSeconds,
		VideoBitrate:        videoBitrate,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("room", req.RoomName).Msg("egress start failed")
		s.removeSegmentDir(ctx, relPath)
		return nil, errors.Join(ErrBadRequest, err)
	}

	session := &entities.EgressSession{
		ID:          sessionId,
		UserId:      req.UserId,
		RoomName:    req.RoomName,
		ChannelId:   req.ChannelId,
		EgressId:    info.EgressId,
		SegmentPath: relPath,
		Status:      constant.SessionStatusActive,
		StartedAt:   time.Now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("egress_id", info.EgressId).Msg("failed to persist session, stopping recording")
		if stopErr := s.egress.StopRecording(ctx, info.EgressId); stopErr != nil && !egress.IsGoneErr(stopErr) {
			zerolog.Ctx(ctx).Error().Err(stopErr).Str("egress_id", info.EgressId).Msg("failed to stop recording after persist failure")
		}
		s.removeSegmentDir(ctx, relPath)
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionId.String()).
		Str("egress_id", info.EgressId).
		Int("video_bitrate", videoBitrate).
		Msg("replay session started")

	return &dto.SessionResult{
		SessionId: sessionId,
		EgressId:  info.EgressId,
		Status:    constant.SessionStatusActive,
	}, nil
}

// Stop ends the user's active session. Stopping a recording the controller
// already considers gone is treated as success.
func (s *ReplayService) Stop(ctx context.Context, userId uuid.UUID) (*dto.SessionResult, error) {
	lock := s.userLock(userId)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.FindActiveByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.Join(ErrNotFound, errors.New("no active replay session"))
	}
	return s.stopSession(ctx, session)
}

func (s *ReplayService) stopSession(ctx context.Context, session *entities.EgressSession) (*dto.SessionResult, error) {
	err := s.egress.StopRecording(ctx, session.EgressId)
	if err != nil && !egress.IsGoneErr(err) {
		zerolog.Ctx(ctx).Error().Err(err).Str("egress_id", session.EgressId).Msg("egress stop failed")
		return nil, errors.Join(ErrBadRequest, err)
	}

	transitioned, err := s.repo.EndSessionIfActive(ctx, session.ID, constant.SessionStatusStopped, time.Now(), nil)
	if err != nil {
		return nil, err
	}
	// A concurrent trigger that won the guard race already cleaned up.
	if transitioned {
		s.removeSegmentDir(ctx, session.SegmentPath)
		s.removeCacheDir(ctx, session.UserId)
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", session.ID.String()).
		Str("egress_id", session.EgressId).
		Msg("replay session stopped")

	return &dto.SessionResult{
		SessionId: session.ID,
		EgressId:  session.EgressId,
		Status:    constant.SessionStatusStopped,
	}, nil
}

// HandleExternalEnded applies an externally-reported end event. Unknown
// egress ids and sessions that already left the active status are no-ops,
// which makes duplicate or out-of-order webhook delivery safe.
func (s *ReplayService) HandleExternalEnded(ctx context.Context, egressId string, status constant.SessionStatus, errorMessage string) error {
	session, err := s.repo.FindByEgressId(ctx, egressId)
	if err != nil {
		return err
	}
	if session == nil {
		zerolog.Ctx(ctx).Info().Str("egress_id", egressId).Msg("ended event for unknown egress id, ignoring")
		return nil
	}
	if session.Status != constant.SessionStatusActive {
		zerolog.Ctx(ctx).Debug().
			Str("session_id", session.ID.String()).
			Str("status", session.Status.String()).
			Msg("ended event for non-active session, ignoring")
		return nil
	}

	return s.finishSession(ctx, session, status, errorMessage)
}

// finishSession performs the guarded active→terminal transition, cleans up
// the buffer directory and notifies the owner. Losing the guard race to a
// concurrent trigger is not an error.
func (s *ReplayService) finishSession(ctx context.Context, session *entities.EgressSession, status constant.SessionStatus, errorMessage string) error {
	var errPtr *string
	if errorMessage != "" {
		errPtr = &errorMessage
	}
	transitioned, err := s.repo.EndSessionIfActive(ctx, session.ID, status, time.Now(), errPtr)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	s.removeSegmentDir(ctx, session.SegmentPath)
	s.removeCacheDir(ctx, session.UserId)

	eventType := constant.ReplayEventStopped
	if status == constant.SessionStatusFailed {
		eventType = constant.ReplayEventFailed
	}
	event := dto.ReplayEvent{
		Type:      eventType,
		UserId:    session.UserId,
		SessionId: session.ID,
		EgressId:  session.EgressId,
		ChannelId: session.ChannelId,
		Error:     errorMessage,
	}
	if err := s.notifier.PublishReplayEvent(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", session.ID.String()).Msg("failed to publish replay event")
	}
	return nil
}

// SessionInfo describes the user's current buffer window, counting only
// complete segments.
func (s *ReplayService) SessionInfo(ctx context.Context, userId uuid.UUID) (*dto.SessionInfo, error) {
	session, err := s.repo.FindActiveByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &dto.SessionInfo{HasActiveSession: false}, nil
	}

	segments, err := ListAndSort(ctx, s.segmentDir(session.SegmentPath))
	if err != nil {
		return nil, err
	}
	complete := FilterComplete(ctx, segments, s.cfg.Replay.MinSegmentBytes)

	totalSeconds := len(complete) * constant.SegmentSeconds
	end := time.Now()
	start := end.Add(-time.Duration(totalSeconds) * time.Second)

	return &dto.SessionInfo{
		HasActiveSession:     true,
		SessionId:            &session.ID,
		TotalSegments:        len(complete),
		TotalDurationSeconds: totalSeconds,
		BufferStartTime:      &start,
		BufferEndTime:        &end,
	}, nil
}

// removeSegmentDir is best-effort: a session must be able to end even when
// its buffer directory cannot be deleted.
func (s *ReplayService) removeSegmentDir(ctx context.Context, relPath string) {
	if relPath == "" {
		return
	}
	dir := s.segmentDir(relPath)
	if err := os.RemoveAll(dir); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("failed to delete segment directory")
	}
}

// removeCacheDir drops the user's remuxed-segment cache. The cached copies
// reference a buffer that no longer exists once the session ends.
func (s *ReplayService) removeCacheDir(ctx context.Context, userId uuid.UUID) {
	dir := s.cacheDir(userId)
	if err := os.RemoveAll(dir); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("failed to delete remux cache directory")
	}
}

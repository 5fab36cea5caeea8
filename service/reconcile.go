package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"replay-service/constant"
	"replay-service/pkg/egress"
)

// ReconcileOnce re-derives the status of every active session from the
// external controller, correcting missed or out-of-order end events. One
// session's failure never stops the rest of the run.
func (s *ReplayService) ReconcileOnce(ctx context.Context) {
	sessions, err := s.repo.FindAllActive(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("reconcile: failed to list active sessions")
		return
	}

	for _, session := range sessions {
		info, err := s.egress.GetRecording(ctx, session.EgressId)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("egress_id", session.EgressId).Msg("reconcile: controller query failed")
			continue
		}

		switch {
		case info == nil:
			// The controller forgot the recording entirely.
			if err := s.finishSession(ctx, session, constant.SessionStatusStopped, ""); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("session_id", session.ID.String()).Msg("reconcile: failed to stop vanished session")
			}
		case info.Status.Terminal():
			status := constant.SessionStatusStopped
			if info.Status.Failed() {
				status = constant.SessionStatusFailed
			}
			if err := s.finishSession(ctx, session, status, info.Error); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("session_id", session.ID.String()).Msg("reconcile: failed to finish ended session")
			}
		default:
			// Still starting or recording; nothing to correct.
		}
	}
}

// CleanSegmentsOnce bounds the on-disk buffer by deleting segment files
// older than the retention age. The recorder's live manifest keeps a recent
// modification time and so survives naturally.
func (s *ReplayService) CleanSegmentsOnce(ctx context.Context) {
	sessions, err := s.repo.FindAllActive(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("segment cleaner: failed to list active sessions")
		return
	}

	cutoff := time.Now().Add(-s.cfg.Replay.RetentionAge)
	for _, session := range sessions {
		dir := s.segmentDir(session.SegmentPath)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("segment cleaner: failed to read directory")
			continue
		}

		removed := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("filename", entry.Name()).Msg("segment cleaner: failed to delete segment")
				continue
			}
			removed++
		}
		if removed > 0 {
			zerolog.Ctx(ctx).Debug().
				Str("session_id", session.ID.String()).
				Int("removed", removed).
				Msg("segment cleaner: expired segments deleted")
		}
	}
}

// ReapOrphansOnce force-stops sessions that have been active far longer
// than any normal use, which means their end event was lost for good.
func (s *ReplayService) ReapOrphansOnce(ctx context.Context) {
	sessions, err := s.repo.FindAllActive(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("orphan reaper: failed to list active sessions")
		return
	}

	cutoff := time.Now().Add(-s.cfg.Replay.StaleAge)
	for _, session := range sessions {
		if session.StartedAt.After(cutoff) {
			continue
		}

		zerolog.Ctx(ctx).Warn().
			Str("session_id", session.ID.String()).
			Time("started_at", session.StartedAt).
			Msg("orphan reaper: force-stopping stale session")

		if err := s.egress.StopRecording(ctx, session.EgressId); err != nil && !egress.IsGoneErr(err) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("egress_id", session.EgressId).Msg("orphan reaper: external stop failed")
		}
		if err := s.finishSession(ctx, session, constant.SessionStatusStopped, ""); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("session_id", session.ID.String()).Msg("orphan reaper: failed to mark session stopped")
		}
	}
}

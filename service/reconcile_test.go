package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replay-service/constant"
	"replay-service/pkg/egress"
)

func TestReconcileLeavesRunningSessionsAlone(t *testing.T) {
	env := newTestEnv(t)
	session := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now())
	env.egress.recordings = map[string]*egress.RecordingInfo{
		session.EgressId: {EgressId: session.EgressId, Status: egress.StatusActive},
	}

	env.svc.ReconcileOnce(context.Background())

	assert.Equal(t, constant.SessionStatusActive, env.repo.session(session.ID).Status)
	assert.Empty(t, env.notifier.events)
}

func TestReconcileStopsVanishedRecording(t *testing.T) {
	env := newTestEnv(t)
	session := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now())

	env.svc.ReconcileOnce(context.Background())

	assert.Equal(t, constant.SessionStatusStopped, env.repo.session(session.ID).Status)
	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, constant.ReplayEventStopped, env.notifier.events[0].Type)
}

func TestReconcileMarksAbortedAsFailed(t *testing.T) {
	env := newTestEnv(t)
	session := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now())
	env.egress.recordings = map[string]*egress.RecordingInfo{
		session.EgressId: {EgressId: session.EgressId, Status: egress.StatusAborted, Error: "room closed"},
	}

	env.svc.ReconcileOnce(context.Background())

	stored := env.repo.session(session.ID)
	assert.Equal(t, constant.SessionStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "room closed", *stored.Error)
	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, constant.ReplayEventFailed, env.notifier.events[0].Type)
}

func TestReconcileMarksCompleteAsStopped(t *testing.T) {
	env := newTestEnv(t)
	session := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now())
	env.egress.recordings = map[string]*egress.RecordingInfo{
		session.EgressId: {EgressId: session.EgressId, Status: egress.StatusComplete},
	}

	env.svc.ReconcileOnce(context.Background())

	assert.Equal(t, constant.SessionStatusStopped, env.repo.session(session.ID).Status)
}

func TestReapOrphansOnlyStaleSessions(t *testing.T) {
	env := newTestEnv(t)
	fresh := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now().Add(-1*time.Hour))
	stale := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now().Add(-4*time.Hour))

	env.svc.ReapOrphansOnce(context.Background())

	assert.Equal(t, constant.SessionStatusActive, env.repo.session(fresh.ID).Status)
	assert.Equal(t, constant.SessionStatusStopped, env.repo.session(stale.ID).Status)
	assert.Contains(t, env.egress.stopCalls, stale.EgressId)
	assert.NotContains(t, env.egress.stopCalls, fresh.EgressId)
}

func TestReapOrphansToleratesGoneRecording(t *testing.T) {
	env := newTestEnv(t)
	stale := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now().Add(-4*time.Hour))
	env.egress.stopErr = assert.AnError

	env.svc.ReapOrphansOnce(context.Background())

	assert.Equal(t, constant.SessionStatusStopped, env.repo.session(stale.ID).Status)
}

func TestCleanSegmentsRemovesOnlyExpiredFiles(t *testing.T) {
	env := newTestEnv(t)
	session := env.addSession(constant.SessionStatusActive, uuid.New(), time.Now())

	dir := env.svc.segmentDir(session.SegmentPath)
	require.NoError(t, os.MkdirAll(dir, 0755))
	oldPath := writeSegment(t, dir, "seg_a_00000.ts", 12_000)
	freshPath := writeSegment(t, dir, "seg_a_00001.ts", 12_000)
	past := time.Now().Add(-1 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	env.svc.CleanSegmentsOnce(context.Background())

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestCleanSegmentsSkipsMissingDir(t *testing.T) {
	env := newTestEnv(t)
	env.addSession(constant.SessionStatusActive, uuid.New(), time.Now())

	// Directory never created; the run must not error or mutate anything.
	env.svc.CleanSegmentsOnce(context.Background())
	assert.Equal(t, 1, env.repo.activeCount())
}
